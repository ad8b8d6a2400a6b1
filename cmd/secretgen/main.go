// Command secretgen prints freshly generated webhook secrets for operators
// provisioning or rotating webhook sources.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/portfoliokit/ingest-service/internal/ingest/verifier"
)

func main() {
	count := flag.Int("n", 1, "Number of secrets to generate")
	flag.Parse()

	for i := 0; i < *count; i++ {
		secret, err := verifier.GenerateSecret()
		if err != nil {
			log.Fatalf("failed to generate secret: %v", err)
		}
		fmt.Println(secret)
	}
}
