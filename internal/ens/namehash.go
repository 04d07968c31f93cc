package ens

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/idna"
)

// UTS-46 профиль без transitional-маппинга, как у ENS (ENSIP-1/15)
var profile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
)

// Normalize приводит ENS-имя к канонической форме: UTS-46 маппинг, lower-case, без точки в конце.
func Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", fmt.Errorf("ens: empty name")
	}

	normalized, err := profile.ToUnicode(name)
	if err != nil {
		return "", fmt.Errorf("ens: cannot normalize %q: %w", name, err)
	}
	for _, label := range strings.Split(normalized, ".") {
		if label == "" {
			return "", fmt.Errorf("ens: empty label in %q", name)
		}
	}
	return normalized, nil
}

// Namehash реализует EIP-137: node(name) = keccak256(node(parent) ‖ keccak256(label)).
// Имя должно быть уже нормализовано.
func Namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := keccak256([]byte(labels[i]))
		copy(node[:], keccak256(node[:], labelHash))
	}
	return node
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
