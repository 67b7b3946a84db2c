// Package config loads and validates Tuya Fusion Core configuration.
//
// Configuration comes from a YAML file with TUYAFUSION_ environment
// variable overrides applied on top. Everything is loaded and validated
// once at startup; there is no runtime reload.
//
// The file defines the cloud source credentials, per-source MQTT push
// channels, reconcile tunables (hysteresis, workers, fetch timeout,
// refresh interval), and the database, InfluxDB, API and logging
// sections. Missing optional fields receive defaults before validation.
//
// Secrets (cloud client secrets, the JWT signing key) belong in
// environment variables, not the file:
//
//	TUYAFUSION_JWT_SECRET=...
//	TUYAFUSION_SOURCE_0_SECRET=...
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Sources[0].Name)
package config
