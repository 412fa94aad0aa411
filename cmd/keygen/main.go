package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func main() {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate key: %v", err)
	}
	key := "sw-" + hex.EncodeToString(buf)

	fmt.Printf("API key: %s\n\n", key)
	fmt.Println("Add this to your config.yaml:")
	fmt.Println("  server:")
	fmt.Printf("    api_key: \"%s\"\n", key)
	fmt.Println("\nOr keep it out of the file and reference the environment:")
	fmt.Printf("  export SWITCHBOARD_KEY=%s\n", key)
	fmt.Println("  server:")
	fmt.Println("    api_key: ${SWITCHBOARD_KEY}")
}
