package main

import (
	"fmt"
	"os"
	"strconv"
)

// calc_cache_key.go - Utility to calculate the cache key for an avatar record
//
// Usage:
//   go run scripts/calc_cache_key.go <rpm_id> <version>
//
// Example:
//   go run scripts/calc_cache_key.go abc123 3
//
// Output:
//   avatar:abc123:v3

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run calc_cache_key.go <rpm_id> <version>")
		fmt.Println("")
		fmt.Println("Example:")
		fmt.Println("  go run scripts/calc_cache_key.go abc123 3")
		os.Exit(1)
	}

	rpmID := os.Args[1]
	version, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Printf("invalid version %q: must be an integer\n", os.Args[2])
		os.Exit(1)
	}

	fmt.Printf("RPM ID:    %s\n", rpmID)
	fmt.Printf("Version:   %d\n", version)
	fmt.Printf("Cache key: avatar:%s:v%d\n", rpmID, version)
}
