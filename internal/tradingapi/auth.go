package tradingapi

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

func decimalFromInt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// SignatureType identifies the signing scheme for the CTF exchange contract.
type SignatureType int

const (
	SigEOA        SignatureType = 0
	SigProxy      SignatureType = 1
	SigGnosisSafe SignatureType = 2
)

// Credentials holds the L2 API key triplet returned by /auth/derive-api-key.
type Credentials struct {
	ApiKey     string
	Secret     string
	Passphrase string
}

// Auth handles the two layers of Polymarket authentication the live
// engine's order-placement path needs:
//
//   - L1 (EIP-712): used once to derive L2 API keys, signing a typed-data
//     "ClobAuth" message with the wallet's private key.
//   - L2 (HMAC-SHA256): used for every trading request, signing
//     "timestamp + method + path [+ body]" with the derived API secret.
type Auth struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       *big.Int
	sigType       SignatureType
	creds         Credentials
}

// NewAuth builds an Auth from a hex-encoded private key (with or without a
// 0x prefix), the chain ID, and any pre-derived L2 credentials.
func NewAuth(privateKeyHex string, chainID int, sigType SignatureType, funderAddressHex string, creds Credentials) (*Auth, error) {
	if len(privateKeyHex) >= 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("tradingapi: parse private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	funder := address
	if funderAddressHex != "" {
		funder = common.HexToAddress(funderAddressHex)
	}

	return &Auth{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       big.NewInt(int64(chainID)),
		sigType:       sigType,
		creds:         creds,
	}, nil
}

// Address returns the signer's Ethereum address.
func (a *Auth) Address() common.Address { return a.address }

// FunderAddress returns the funder/proxy wallet address.
func (a *Auth) FunderAddress() common.Address { return a.funderAddress }

// HasL2Credentials reports whether L2 API credentials are configured.
func (a *Auth) HasL2Credentials() bool {
	return a.creds.ApiKey != "" && a.creds.Secret != "" && a.creds.Passphrase != ""
}

// SetCredentials installs L2 API credentials derived via L1 auth.
func (a *Auth) SetCredentials(creds Credentials) { a.creds = creds }

// L1Headers produces the header set for the one-time derive-api-key call.
func (a *Auth) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.signClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   a.address.Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.Itoa(nonce),
	}, nil
}

// L2Headers produces the HMAC-signed header set for a trading request.
func (a *Auth) L2Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":    a.address.Hex(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    a.creds.ApiKey,
		"POLY_PASSPHRASE": a.creds.Passphrase,
	}, nil
}

func (a *Auth) signClobAuth(timestamp string, nonce int) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   a.address.Hex(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}
	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(a.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body
	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// signedOrder is the on-chain order format the CLOB API expects.
type signedOrder struct {
	Salt          string        `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Side          model.Side    `json:"side"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	SignatureType SignatureType `json:"signatureType"`
}

// orderPayload is the REST request body for POST /order.
type orderPayload struct {
	Order     signedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"`
}

// buildOrderPayload converts an OrderRequest into the signed on-chain
// payload the CLOB API expects, scaling price/size to 1e6 USDC units.
func (a *Auth) buildOrderPayload(req model.OrderRequest, feeRateBps int) orderPayload {
	const usdcScale = 1_000_000

	sizeScaled := req.Size.Mul(decimalFromInt(usdcScale)).Truncate(0)
	costScaled := req.Size.Mul(req.Price).Mul(decimalFromInt(usdcScale)).Truncate(0)

	var makerAmt, takerAmt string
	switch req.Side {
	case model.Buy:
		makerAmt, takerAmt = costScaled.String(), sizeScaled.String()
	default: // Sell
		makerAmt, takerAmt = sizeScaled.String(), costScaled.String()
	}

	orderType := "FOK"
	if req.OrderType == model.OrderTypeLimit {
		orderType = "GTC"
	}

	return orderPayload{
		Order: signedOrder{
			Maker:         a.funderAddress.Hex(),
			Signer:        a.address.Hex(),
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenID:       req.TokenID,
			MakerAmount:   makerAmt,
			TakerAmount:   takerAmt,
			Side:          req.Side,
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    fmt.Sprintf("%d", feeRateBps),
			SignatureType: a.sigType,
		},
		Owner:     a.creds.ApiKey,
		OrderType: orderType,
	}
}
