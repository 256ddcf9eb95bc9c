// Package main is a development utility for generating the two secrets the
// portal needs at boot: a 32-byte AES-256 key for encrypting stored Power BI
// client secrets and a session-cookie signing secret. Both are printed
// base64-encoded, ready to paste into config.yaml or the matching PORTAL_
// environment variables. Do not reuse generated values across environments —
// rotating the encryption key invalidates any stored credential ciphertext.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func randomBase64(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func main() {
	encryptionKey := randomBase64(32)
	sessionSecret := randomBase64(48)

	fmt.Println("==========================================================")
	fmt.Println("Portal Secrets Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nEncryption Key (AES-256): %s\n", encryptionKey)
	fmt.Printf("\nSession Secret:           %s\n", sessionSecret)
	fmt.Println("\n==========================================================")
	fmt.Println("Environment variables:")
	fmt.Println("==========================================================")
	fmt.Printf("\nPORTAL_AUTH_ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Printf("PORTAL_AUTH_SESSION_SECRET=%s\n", sessionSecret)
	fmt.Println("\n==========================================================")
}
