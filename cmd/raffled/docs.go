package main

//go:generate swag init -g cmd/raffled/main.go -o docs

// @title           Raffle Service API
// @version         0.1.0
// @description     Time-boxed raffle rounds settled by an external randomness oracle.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
