// Package config loads fifokit configuration from YAML, .env files and
// the environment using Viper, and validates it with struct tags.
//
// # Usage
//
//	var cfg AppConfig
//	if err := config.LoadConfig("fifokit", &cfg, config.WithConfigFile(path)); err != nil {
//		return err
//	}
//	if err := config.ValidateStruct(&cfg); err != nil {
//		return err
//	}
//
// Environment variables override file values: EXECUTOR_MAX_CONCURRENCY
// sets executor.max_concurrency.
package config
