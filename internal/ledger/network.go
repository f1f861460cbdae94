package ledger

import (
	"fmt"
	"strings"
)

const DefaultNetwork = "testnet"

var fullnodeURLs = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

// FullnodeURL returns the public JSON-RPC endpoint for a network name.
func FullnodeURL(network string) (string, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = DefaultNetwork
	}
	u, ok := fullnodeURLs[network]
	if !ok {
		return "", fmt.Errorf("unknown network %q", network)
	}
	return u, nil
}
