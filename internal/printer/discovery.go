package printer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/utils"
)

// --- Discovery Logic ---

type DiscoveryConfig struct {
	Subnet      string // first three octets, e.g. "192.168.1"; empty means the local subnet
	Port        int
	Workers     int
	DialTimeout time.Duration
}

// Discover dials every host of a /24 for an open raw-print port and returns
// one printer per responding address, sorted by address.
func Discover(ctx context.Context, cfg DiscoveryConfig, logger *slog.Logger) ([]model.Printer, error) {
	if cfg.Port == 0 {
		cfg.Port = 9100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 50
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 300 * time.Millisecond
	}
	if cfg.Subnet == "" {
		localIP, err := utils.DetectLocalIP()
		if err != nil {
			return nil, err
		}
		parts := strings.Split(localIP, ".")
		cfg.Subnet = strings.Join(parts[:3], ".")
	}
	logger.Info("scanning subnet", "subnet", cfg.Subnet+".0/24", "port", cfg.Port)

	ipChan := make(chan string, 256)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if utils.Reachable(ctx, ip, cfg.Port, cfg.DialTimeout) {
					foundChan <- ip
				}
			}
		}()
	}

	go func() {
		defer close(ipChan)
		for i := 1; i <= 254; i++ {
			select {
			case <-ctx.Done():
				return
			case ipChan <- fmt.Sprintf("%s.%d", cfg.Subnet, i):
			}
		}
	}()

	go func() {
		wg.Wait()
		close(foundChan)
	}()

	var found []string
	for ip := range foundChan {
		logger.Info("found printer", "ip", ip)
		found = append(found, ip)
	}
	sort.Slice(found, func(i, j int) bool { return lastOctet(found[i]) < lastOctet(found[j]) })

	printers := make([]model.Printer, 0, len(found))
	for _, ip := range found {
		printers = append(printers, model.Printer{
			Name:      "printer-" + strings.ReplaceAll(ip, ".", "-"),
			Driver:    DriverESCPOS,
			IP:        ip,
			Port:      cfg.Port,
			IsEnabled: true,
		})
	}
	return printers, ctx.Err()
}

func lastOctet(ip string) int {
	var a, b, c, d int
	fmt.Sscanf(ip, "%d.%d.%d.%d", &a, &b, &c, &d)
	return d
}
