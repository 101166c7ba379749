package app

import (
	"fmt"
	"strings"

	"poa/internal/venue"
)

type StartupSummary struct {
	HTTPAddr  string
	Whitelist []string
	Venues    []venue.ID
	StorePath string
	Report    string
	Notify    string
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[Webhook]")
	fmt.Printf("  监听地址: %s\n", s.HTTPAddr)
	fmt.Printf("  IP 白名单: %s\n", formatList(s.Whitelist))
	fmt.Println()

	fmt.Println("[交易所 (VENUES)]")
	crypto, brokers := splitVenues(s.Venues)
	fmt.Printf("  加密货币: %s\n", formatList(crypto))
	fmt.Printf("  证券账户: %s\n", formatList(brokers))
	fmt.Println()

	fmt.Println("[资产报告 (REPORT)]")
	fmt.Printf("  调度: %s\n", orDash(s.Report))
	fmt.Printf("  推送: %s\n", orDash(s.Notify))
	fmt.Printf("  数据库: %s\n", orDash(s.StorePath))
	fmt.Println(strings.Repeat("=", 80))
}

func splitVenues(ids []venue.ID) (crypto, brokers []string) {
	for _, id := range ids {
		if id.IsBroker() {
			brokers = append(brokers, id.String())
			continue
		}
		crypto = append(crypto, id.String())
	}
	return crypto, brokers
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(关闭)"
	}
	return s
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
