// Package tuya talks to the Tuya cloud.
//
// Two API flavours exist and the service uses both: the IoT-platform
// OpenAPI (project credentials, full device specifications) and the
// sharing API behind an app-linked account (same wire shapes, fewer
// fields, a local-strategy table the OpenAPI does not expose). The
// package hides the difference behind one Client; which endpoints a
// client calls is decided by its configuration.
//
//	┌──────────┐   signed HTTPS    ┌─────────────┐
//	│  Client  │ ────────────────▶ │  Tuya cloud │
//	└──────────┘                   └─────────────┘
//	     │ convert.go
//	     ▼
//	 point.Device (canonical model)
//
// Wire types mirror Tuya's JSON exactly and never leak past this
// package; convert.go maps them into the canonical point model. Push
// envelopes arriving over MQTT are decoded here too (DecodePush), so
// the registry never sees raw cloud JSON.
package tuya
