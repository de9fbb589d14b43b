package keypair

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// transferTx builds an unsigned legacy transaction holding a single
// system-program transfer of lamports from -> to, with from as fee payer.
func transferTx(from, to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
		blockhash,
		solana.TransactionPayer(from),
	)
}

// decodeTransaction parses a legacy wire transaction and verifies every
// signature against its signer.
func decodeTransaction(raw []byte) (*solana.Transaction, error) {
	dec := bin.NewBinDecoder(raw)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	if n := dec.Remaining(); n > 0 {
		return nil, fmt.Errorf("%d trailing bytes after transaction", n)
	}
	if tx.Message.IsVersioned() {
		return nil, errors.New("versioned messages are not supported")
	}
	if len(tx.Signatures) == 0 {
		return nil, errors.New("transaction has no signatures")
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, err
	}
	return tx, nil
}
