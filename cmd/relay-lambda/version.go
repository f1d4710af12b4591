package main

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH}" ./cmd/relay-lambda
var commitHash = "dev"
