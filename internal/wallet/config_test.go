package wallet

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleChains = `
chains:
  devnet:
    type: evm
    rpc_url: http://localhost:8545
    chain_id: 31337
    native_currency: SOL
    description: local development chain
  mainnet:
    type: evm
    rpc_url: https://rpc.example.org
    chain_id: 1
    native_currency: ETH
`

func TestLoadChainDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(path, []byte(sampleChains), 0o644); err != nil {
		t.Fatalf("write chain config: %v", err)
	}

	defs, err := LoadChainDefinitions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(defs.Chains))
	}

	dev, ok := defs.Definition("devnet")
	if !ok {
		t.Fatalf("expected devnet definition")
	}
	if dev.RPCURL != "http://localhost:8545" || dev.ChainID != 31337 {
		t.Fatalf("unexpected devnet definition: %+v", dev)
	}

	if _, ok := defs.Definition("testnet"); ok {
		t.Fatalf("unknown chain must not resolve")
	}
	// With multiple chains an empty name is ambiguous.
	if _, ok := defs.Definition(""); ok {
		t.Fatalf("empty name must not resolve when several chains exist")
	}
}

func TestLoadChainDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadChainDefinitions("")
	if err != nil {
		t.Fatalf("empty path should yield empty definitions: %v", err)
	}
	if len(defs.Chains) != 0 {
		t.Fatalf("expected no chains, got %d", len(defs.Chains))
	}
}

func TestDefinitionSingleEntryFallback(t *testing.T) {
	defs := ChainDefinitions{Chains: map[string]ChainDefinition{
		"only": {RPCURL: "http://localhost:8545", ChainID: 7},
	}}
	def, ok := defs.Definition("")
	if !ok || def.ChainID != 7 {
		t.Fatalf("expected single entry fallback, got %+v ok=%v", def, ok)
	}
}
