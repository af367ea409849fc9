package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"AgentPay-SDK/internal/agent"
	"AgentPay-SDK/internal/config"
	"AgentPay-SDK/internal/payment"
	"AgentPay-SDK/sdk/agentpay"
)

// main 演示 AgentPay SDK 的完整支付流程：注册智能体、构造支付请求、
// 提交转账并等待链上确认。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("agentpayd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AGENTPAY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "agentpay.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client, err := agentpay.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	registered, err := client.Agents.Register(ctx, agent.Registration{
		OwnerID:     "demo-owner",
		Name:        "demo-agent",
		Description: "agentpayd 演示智能体",
	})
	if err != nil {
		return err
	}
	log.Printf("智能体已注册: %s", registered.ID)

	recipient := os.Getenv("AGENTPAY_RECIPIENT")
	if recipient == "" {
		log.Println("未设置 AGENTPAY_RECIPIENT，跳过支付演示")
		return nil
	}

	request, err := client.Payments.CreatePaymentRequest(ctx, 0.01, cfg.Network.NativeCurrency, recipient,
		payment.WithMemo("agentpayd demo"))
	if err != nil {
		return err
	}
	log.Printf("支付请求已创建: %s", request.Reference)

	if client.Wallet() == nil || !client.Wallet().IsConnected() {
		log.Println("钱包未连接，跳过转账提交")
		return nil
	}

	submitted, err := client.Payments.ProcessPayment(ctx, request, "demo-user",
		payment.ForAgent(registered.ID))
	if err != nil {
		return err
	}
	log.Printf("转账已提交: payment=%s signature=%s", submitted.ID, submitted.TxSignature)

	// 确认轮询在后台进行，这里阻塞到收到信号为止，期间打印最新状态。
	<-ctx.Done()

	final, err := client.Payments.GetPayment(context.Background(), submitted.ID)
	if err != nil {
		return err
	}
	encoded, _ := json.MarshalIndent(final, "", "  ")
	log.Printf("退出时的支付状态:\n%s", encoded)
	return nil
}
