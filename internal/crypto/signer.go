package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// --------------------------------------------------------------------------

const (
	exchangeDomainName    = "0x Protocol"
	exchangeDomainVersion = "3.0.0"

	// signatureTypeEIP712 is appended to signatures produced by Signer.
	signatureTypeEIP712 = 0x02
)

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	orderTypeHash = ethcrypto.Keccak256(
		[]byte("Order(address makerAddress,address takerAddress,address feeRecipientAddress,address senderAddress," +
			"uint256 makerAssetAmount,uint256 takerAssetAmount,uint256 makerFee,uint256 takerFee," +
			"uint256 expirationTimeSeconds,uint256 salt,bytes makerAssetData,bytes takerAssetData," +
			"bytes makerFeeAssetData,bytes takerFeeAssetData)"),
	)
)

// DomainSeparator returns the EIP-712 domain separator of an exchange
// deployment.
func DomainSeparator(d domain.OrderDomain) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(exchangeDomainName)),
			ethcrypto.Keccak256([]byte(exchangeDomainVersion)),
			bigIntTo32Bytes(big.NewInt(d.ChainID)),
			common.LeftPadBytes(d.ExchangeAddress.Bytes(), 32),
		),
	)
}

// OrderHash returns the EIP-712 hash that identifies o on its exchange.
func OrderHash(o domain.SignedOrder) common.Hash {
	dom := domain.OrderDomain{ChainID: o.ChainID, ExchangeAddress: o.ExchangeAddress}
	return common.BytesToHash(eip712Hash(DomainSeparator(dom), orderStructHash(o)))
}

// OrderHashHex is OrderHash as a lower-case 0x string.
func OrderHashHex(o domain.SignedOrder) string {
	return strings.ToLower(OrderHash(o).Hex())
}

// Signer signs exchange orders with an EOA key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignOrder signs o and returns the exchange signature bytes
// (v || r || s || signature type).
func (s *Signer) SignOrder(o domain.SignedOrder) ([]byte, error) {
	hash := OrderHash(o)
	sig, err := ethcrypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signing: %w: %v", domain.ErrSigningFailed, err)
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	out := make([]byte, 0, 66)
	out = append(out, v)
	out = append(out, sig[:64]...)
	return append(out, signatureTypeEIP712), nil
}

// RecoverSigner returns the address that produced an EIP-712 signature made
// by SignOrder over o.
func RecoverSigner(o domain.SignedOrder, sig []byte) (common.Address, error) {
	if len(sig) != 66 || sig[65] != signatureTypeEIP712 {
		return common.Address{}, fmt.Errorf("crypto/signer: unsupported signature of %d bytes", len(sig))
	}
	raw := make([]byte, 65)
	copy(raw, sig[1:65])
	raw[64] = sig[0] - 27
	pub, err := ethcrypto.SigToPub(OrderHash(o).Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// orderStructHash encodes and hashes an order according to EIP-712. Dynamic
// bytes fields are hashed in place.
func orderStructHash(o domain.SignedOrder) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			orderTypeHash,
			common.LeftPadBytes(o.MakerAddress.Bytes(), 32),
			common.LeftPadBytes(o.TakerAddress.Bytes(), 32),
			common.LeftPadBytes(o.FeeRecipientAddress.Bytes(), 32),
			common.LeftPadBytes(o.SenderAddress.Bytes(), 32),
			bigIntTo32Bytes(o.MakerAssetAmount),
			bigIntTo32Bytes(o.TakerAssetAmount),
			bigIntTo32Bytes(o.MakerFee),
			bigIntTo32Bytes(o.TakerFee),
			bigIntTo32Bytes(o.ExpirationTimeSeconds),
			bigIntTo32Bytes(o.Salt),
			ethcrypto.Keccak256(o.MakerAssetData),
			ethcrypto.Keccak256(o.TakerAssetData),
			ethcrypto.Keccak256(o.MakerFeeAssetData),
			ethcrypto.Keccak256(o.TakerFeeAssetData),
		),
	)
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n. A nil n
// encodes as zero.
func bigIntTo32Bytes(n *big.Int) []byte {
	padded := make([]byte, 32)
	if n == nil {
		return padded
	}
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
