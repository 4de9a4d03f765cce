// Package config defines the smokewatch settings and provides helpers to
// load, validate and save them in YAML format.
//
// Settings are read through viper, so every key can be overridden by an
// environment variable named SMOKEWATCH_<KEY>, with nested keys joined by an
// underscore (SMOKEWATCH_MQTT_BROKER_URL). Files are written with yaml.v3.
package config
