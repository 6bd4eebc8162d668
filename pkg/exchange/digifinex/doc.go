// Package digifinex implements the DigiFinex REST API behind the unified
// exchange.Exchange interface.
//
// The package includes:
//   - Protocol: endpoint table, request building, HMAC-SHA256 signing and
//     response classification
//   - Normalizer: conversion of DigiFinex payloads into canonical core types
//   - Exchange: the client, which owns the market catalog and runs every call
//     through a session.Session
//
// Public endpoints live under /v3 except the ticker family, which is only
// served by the legacy /v2 API and takes the API key as a plain parameter.
//
// Example usage:
//
//	cfg := core.DefaultConfig("digifinex").WithCredentials(&core.Credentials{
//		APIKey:    os.Getenv("DIGIFINEX_API_KEY"),
//		SecretKey: os.Getenv("DIGIFINEX_SECRET_KEY"),
//	})
//	ex, err := digifinex.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer ex.Close()
//
//	ticker, err := ex.GetTicker(ctx, "BTC/USDT")
package digifinex
