package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"AgentPay-SDK/internal/wallet"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// finalityDepth is the block depth after which a mined transfer is
// reported as finalized rather than merely confirmed.
const finalityDepth = 12

// nativeTransferGas is the intrinsic gas cost of a plain value transfer.
const nativeTransferGas = 21000

// Config describes how to construct an EVM backed signing session.
type Config struct {
	Name       string
	RPCURL     string
	PrivateKey string
	ChainID    int64
	Notes      string
}

// Session implements wallet.Session and wallet.StatusOracle for EVM
// compatible chains.
type Session struct {
	name      string
	notes     string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	mu        sync.Mutex
}

// NewSession dials the configured RPC endpoint and prepares the signer.
// The private key is optional; a session created without one can still
// validate addresses and query balances but reports itself disconnected.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	session := &Session{
		name:      cfg.Name,
		notes:     cfg.Notes,
		rpcClient: rpcClient,
		eth:       eth,
	}

	if keyHex := strings.TrimSpace(strings.TrimPrefix(cfg.PrivateKey, "0x")); keyHex != "" {
		key, err := crypto.HexToECDSA(keyHex)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("解析私钥失败: %w", err)
		}
		session.key = key
		session.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	if cfg.ChainID > 0 {
		session.chainID = big.NewInt(cfg.ChainID)
	} else {
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("获取链 ID 失败: %w", err)
		}
		session.chainID = chainID
	}

	return session, nil
}

// IsConnected implements wallet.Session.
func (s *Session) IsConnected() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eth != nil && s.key != nil
}

// ValidateAddress implements wallet.Session.
func (s *Session) ValidateAddress(address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return fmt.Errorf("非法的链上地址: %s", address)
	}
	return nil
}

// Balance returns the native balance of the address in whole units.
func (s *Session) Balance(ctx context.Context, address string) (float64, error) {
	if s == nil || s.eth == nil {
		return 0, errors.New("会话未初始化")
	}
	if err := s.ValidateAddress(address); err != nil {
		return 0, err
	}
	balance, err := s.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return 0, fmt.Errorf("查询余额失败: %w", err)
	}
	return weiToUnits(balance), nil
}

// SignAndSendTransfer signs and broadcasts a native value transfer.
func (s *Session) SignAndSendTransfer(ctx context.Context, recipient string, amount float64, memo string) (wallet.TransferResult, error) {
	if !s.IsConnected() {
		return wallet.TransferResult{}, errors.New("会话缺少签名私钥")
	}
	if err := s.ValidateAddress(recipient); err != nil {
		return wallet.TransferResult{}, err
	}
	if amount <= 0 {
		return wallet.TransferResult{}, errors.New("转账金额必须为正数")
	}

	to := common.HexToAddress(recipient)
	value := unitsToWei(amount)
	data := []byte(memo)

	nonce, err := s.eth.PendingNonceAt(ctx, s.from)
	if err != nil {
		return wallet.TransferResult{}, fmt.Errorf("查询 nonce 失败: %w", err)
	}
	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		return wallet.TransferResult{}, fmt.Errorf("查询 gas 价格失败: %w", err)
	}

	gasLimit := uint64(nativeTransferGas)
	if len(data) > 0 {
		estimated, err := s.eth.EstimateGas(ctx, gethcore.CallMsg{From: s.from, To: &to, Value: value, Data: data})
		if err != nil {
			return wallet.TransferResult{}, fmt.Errorf("估算 gas 失败: %w", err)
		}
		gasLimit = estimated
	}

	tx := coretypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return wallet.TransferResult{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := s.eth.SendTransaction(ctx, signed); err != nil {
		return wallet.TransferResult{}, fmt.Errorf("广播交易失败: %w", err)
	}

	return wallet.TransferResult{Signature: signed.Hash().Hex(), Confirmed: false}, nil
}

// SignatureStatus implements wallet.StatusOracle by inspecting the
// transaction receipt and its depth below the chain head.
func (s *Session) SignatureStatus(ctx context.Context, signature string) (wallet.SignatureStatus, error) {
	if s == nil || s.eth == nil {
		return wallet.SignatureStatus{}, errors.New("会话未初始化")
	}
	receipt, err := s.eth.TransactionReceipt(ctx, common.HexToHash(signature))
	if err != nil {
		if errors.Is(err, gethcore.NotFound) {
			return wallet.SignatureStatus{Level: wallet.LevelPending}, nil
		}
		return wallet.SignatureStatus{}, fmt.Errorf("查询交易回执失败: %w", err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return wallet.SignatureStatus{Level: wallet.LevelConfirmed, Err: "交易在链上执行失败"}, nil
	}

	head, err := s.eth.BlockNumber(ctx)
	if err != nil {
		// The receipt already proves inclusion; report confirmed.
		return wallet.SignatureStatus{Level: wallet.LevelConfirmed}, nil
	}
	if receipt.BlockNumber != nil && head >= receipt.BlockNumber.Uint64()+finalityDepth {
		return wallet.SignatureStatus{Level: wallet.LevelFinalized}, nil
	}
	return wallet.SignatureStatus{Level: wallet.LevelConfirmed}, nil
}

// Close releases network connections held by the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eth != nil {
		s.eth.Close()
		s.eth = nil
	}
	if s.rpcClient != nil {
		s.rpcClient.Close()
		s.rpcClient = nil
	}
}

func unitsToWei(amount float64) *big.Int {
	units := new(big.Float).SetFloat64(amount)
	wei, _ := new(big.Float).Mul(units, big.NewFloat(1e18)).Int(nil)
	return wei
}

func weiToUnits(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	units, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return units
}

var (
	_ wallet.Session      = (*Session)(nil)
	_ wallet.StatusOracle = (*Session)(nil)
)
