package main

// General API documentation for swaggo. The document served by the swagger
// build lives in package docs and follows these annotations.
//
// @title           keyvisor API
// @version         1.0
// @description     HTTP API for the per-entity task supervisor: counters, uploads and the live event stream.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
