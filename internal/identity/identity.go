package identity

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ZKPong/internal/errors"
)

// DefaultSecret 是演示环境中两名玩家共用的固定私钥。
var DefaultSecret = [32]byte{
	0x0b, 0x9b, 0x3a, 0xde, 0xe6, 0xb3, 0xd8, 0x1b,
	0x28, 0xa0, 0x88, 0x6b, 0x2a, 0x84, 0x15, 0xc7,
	0xda, 0x31, 0x29, 0x1a, 0x5e, 0x96, 0xbb, 0x7a,
	0x56, 0x63, 0x9e, 0x17, 0x7d, 0x30, 0x1b, 0xeb,
}

// PublicKey 以 0x 前缀的 32 字节十六进制坐标表示曲线点。
type PublicKey struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// IsZero 判断公钥是否未设置。
func (k PublicKey) IsZero() bool {
	return k.X == "" && k.Y == ""
}

// Bytes 返回 64 字节的 X||Y 编码。
func (k PublicKey) Bytes() ([]byte, error) {
	x, err := decodeCoordinate(k.X)
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := decodeCoordinate(k.Y)
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	return append(x, y...), nil
}

func decodeCoordinate(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("coordinate has %d bytes, want 32", len(b))
	}
	return b, nil
}

// ParseSecret 解析 32 字节的十六进制私钥，0x 前缀可省略。
func ParseSecret(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "secret is not valid hex")
	}
	if len(b) != len(out) {
		return out, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("secret has %d bytes, want 32", len(b)))
	}
	copy(out[:], b)
	return out, nil
}

// Deriver 在 secp256k1 上由私钥派生公钥。
type Deriver struct{}

// DerivePublicKey 返回 secret 对应的公钥。
func (Deriver) DerivePublicKey(secret [32]byte) (PublicKey, error) {
	key, err := toECDSA(secret)
	if err != nil {
		return PublicKey{}, err
	}
	return publicKeyOf(&key.PublicKey), nil
}

func toECDSA(secret [32]byte) (*ecdsa.PrivateKey, error) {
	key, err := crypto.ToECDSA(secret[:])
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeKeyDerivation, err, "")
	}
	return key, nil
}

func publicKeyOf(pub *ecdsa.PublicKey) PublicKey {
	raw := crypto.FromECDSAPub(pub)
	return PublicKey{
		X: hexutil.Encode(raw[1:33]),
		Y: hexutil.Encode(raw[33:65]),
	}
}
