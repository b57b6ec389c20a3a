package permit

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,uint256 chainId,address verifyingContract)"))
	nameHash       = crypto.Keccak256Hash([]byte("Position Ledger"))
	permitTypeHash = crypto.Keccak256Hash([]byte("Permit(address operator,uint256 tokenId,uint256 nonce,uint256 deadline)"))
)

func domainSeparator(chainID uint64, verifier common.Address) common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		nameHash.Bytes(),
		uint64Word(chainID),
		common.LeftPadBytes(verifier.Bytes(), 32),
	)
}

// DomainSeparator exposes the fixed domain-separation context, for signers.
func (l *Ledger) DomainSeparator() common.Hash {
	return l.domain
}

// Digest is the message hash the owner signs for one delegation.
func (l *Ledger) Digest(positionID uint64, operator common.Address, nonce, expiry uint64) common.Hash {
	structHash := crypto.Keccak256Hash(
		permitTypeHash.Bytes(),
		common.LeftPadBytes(operator.Bytes(), 32),
		uint64Word(positionID),
		uint64Word(nonce),
		uint64Word(expiry),
	)
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		l.domain.Bytes(),
		structHash.Bytes(),
	)
}

func uint64Word(v uint64) []byte {
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], v)
	return word[:]
}

// EthRecoverer recovers secp256k1 signers the way the chain does.
type EthRecoverer struct{}

func (EthRecoverer) Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature length %d, want 65", len(sig))
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover pubkey: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
