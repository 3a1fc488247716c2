package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"ballotd/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

// ABI surface of the deployed Voting contract. vote appends one vote for
// a candidate; getVotes and candidateCount are free reads.
const votingABI = `[
  {"type":"function","name":"vote","stateMutability":"nonpayable","inputs":[{"name":"candidateId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getVotes","stateMutability":"view","inputs":[{"name":"candidateId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"candidateCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

// artifact matches the Truffle build output the contract is deployed
// with: deployment addresses are keyed by network (chain) id.
type artifact struct {
	Networks map[string]struct {
		Address string `json:"address"`
	} `json:"networks"`
}

// resolveDeployment returns the contract address for the connected
// chain, preferring an explicit override address when configured.
func resolveDeployment(override, artifactPath string, chainID *big.Int) (common.Address, error) {
	if override != "" {
		if !common.IsHexAddress(override) {
			return common.Address{}, fmt.Errorf("invalid contract address override %q", override)
		}
		return common.HexToAddress(override), nil
	}
	if artifactPath == "" {
		return common.Address{}, domain.ErrContractNotDeployed
	}
	raw, err := os.ReadFile(artifactPath)
	if err != nil {
		return common.Address{}, fmt.Errorf("read contract artifact: %w", err)
	}
	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return common.Address{}, fmt.Errorf("parse contract artifact: %w", err)
	}
	if chainID == nil {
		return common.Address{}, errors.New("chain id is required")
	}
	deployment, ok := art.Networks[chainID.String()]
	if !ok || !common.IsHexAddress(deployment.Address) {
		return common.Address{}, domain.ErrContractNotDeployed
	}
	return common.HexToAddress(deployment.Address), nil
}
