package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// KeySize 是签名密钥的字节数
const KeySize = 32

// Payload 定义了需要被签名的数据结构。
// 它在创建邻近会话时返回给客户端，之后每次上报位置都要带上对应的签名。
type Payload struct {
	SessionID string `json:"s"`
	UserID    string `json:"u"`
}

// Signer 持有服务器在启动时生成的密钥，密钥只存在于内存中，重启后旧签名全部失效。
type Signer struct {
	key []byte
}

// NewSigner 生成一个密码学安全的随机密钥。
func NewSigner() (*Signer, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("无法生成安全的密钥: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewSignerWithKey 使用给定的密钥，主要用于测试。
func NewSignerWithKey(key []byte) (*Signer, error) {
	if len(key) < KeySize {
		return nil, fmt.Errorf("密钥长度至少为 %d 字节", KeySize)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}, nil
}

func (s *Signer) mac(payload Payload) ([]byte, error) {
	// 1. 将payload序列化为JSON
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New("无法序列化Token payload")
	}

	// 2. 使用HMAC-SHA256和密钥对payload进行签名
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payloadBytes)
	return mac.Sum(nil), nil
}

// Sign 为一个给定的Payload生成HMAC签名，返回Base64编码的字符串。
func (s *Signer) Sign(payload Payload) (string, error) {
	signature, err := s.mac(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(signature), nil
}

// Verify 验证一个给定的payload和签名是否匹配。
func (s *Signer) Verify(payload Payload, signatureB64 string) bool {
	expected, err := s.mac(payload)
	if err != nil {
		return false
	}
	actual, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	// 时间恒定的比较
	return hmac.Equal(expected, actual)
}
