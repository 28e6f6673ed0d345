package main

import (
	"context"
	"flag"
	"log"
	"time"

	"payos-gateway/internal/config"
	"payos-gateway/payos"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	op := flag.String("op", "create", "operation: create | get | cancel | confirm-webhook")
	order := flag.Int64("order", 0, "order code (defaults to a fresh one for create)")
	amount := flag.Int64("amount", 2000, "amount in VND for create")
	description := flag.String("description", "demo order", "payment description")
	reason := flag.String("reason", "", "cancellation reason")
	webhookURL := flag.String("url", "", "webhook URL for confirm-webhook")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	opts := []payos.Option{}
	if cfg.PayOS.BaseURL != "" {
		opts = append(opts, payos.WithBaseURL(cfg.PayOS.BaseURL))
	}
	if cfg.PayOS.PartnerCode != "" {
		opts = append(opts, payos.WithPartnerCode(cfg.PayOS.PartnerCode))
	}
	client, err := payos.NewClient(cfg.PayOS.ClientID, cfg.PayOS.APIKey, cfg.PayOS.ChecksumKey, opts...)
	if err != nil {
		log.Fatalf("payos client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch *op {
	case "create":
		orderCode := *order
		if orderCode == 0 {
			orderCode = time.Now().Unix()
		}
		link, err := client.CreatePaymentLink(ctx, payos.CheckoutRequest{
			OrderCode:   orderCode,
			Amount:      *amount,
			Description: *description,
			CancelURL:   cfg.Demo.CancelURL,
			ReturnURL:   cfg.Demo.ReturnURL,
		})
		if err != nil {
			log.Fatalf("create payment link: %v", err)
		}
		log.Printf("order %d: %s (%s)", link.OrderCode, link.CheckoutURL, link.Status)

	case "get":
		info, err := client.GetPaymentLinkInformation(ctx, *order)
		if err != nil {
			log.Fatalf("get payment link: %v", err)
		}
		log.Printf("order %d: status=%s paid=%d remaining=%d transactions=%d",
			info.OrderCode, info.Status, info.AmountPaid, info.AmountRemaining, len(info.Transactions))

	case "cancel":
		info, err := client.CancelPaymentLink(ctx, *order, *reason)
		if err != nil {
			log.Fatalf("cancel payment link: %v", err)
		}
		log.Printf("order %d: status=%s", info.OrderCode, info.Status)

	case "confirm-webhook":
		confirmed, err := client.ConfirmWebhook(ctx, *webhookURL)
		if err != nil {
			log.Fatalf("confirm webhook: %v", err)
		}
		log.Printf("webhook confirmed: %s", confirmed)

	default:
		log.Fatalf("unknown -op %q", *op)
	}
}
