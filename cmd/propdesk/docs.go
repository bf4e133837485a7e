package main

//go:generate swag init -g cmd/propdesk/main.go -o docs

// @title           propdesk API
// @version         0.1.0
// @description     Rule engine and account lifecycle for evaluation and funded trading accounts.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
