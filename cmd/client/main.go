package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cbodonnell/progsync/pkg/abilities"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/client/network"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/replica"
	"github.com/cbodonnell/progsync/pkg/version"
)

func main() {
	serverURL := flag.String("server-url", network.DefaultServerURL, "Websocket server URL")
	authURL := flag.String("auth-url", "http://localhost:8081", "Auth server URL")
	apiURL := flag.String("api-url", "http://localhost:8080", "API server URL")
	player := flag.String("player", "", "Player to log in as")
	token := flag.String("token", "", "Token to log in with instead of the auth server")
	replicaWait := flag.Duration("replica-wait", replica.DefaultMaxWait, "How long replicas wait for the first snapshot")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel))
	log.Info("Starting client version %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idToken := *token
	if idToken == "" {
		if *player == "" {
			fmt.Fprintln(os.Stderr, "either -player or -token is required")
			os.Exit(2)
		}
		idToken, err = getIDToken(*authURL, *player)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to log in: %v\n", err)
			os.Exit(1)
		}
	}

	catalog, err := getCatalog(*apiURL)
	if err != nil {
		log.Warn("Using built in catalog: %v", err)
		catalog = progression.DefaultCatalog()
	}

	nm, err := network.Connect(ctx, network.NewNetworkManagerOptions{
		URL:   *serverURL,
		Token: idToken,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer nm.Close()

	// The HUD only ever shows what the server confirmed; the shop shows
	// purchases as soon as they are proposed.
	hud := replica.NewReplica(replica.NewReplicaOptions{
		Source:     nm,
		Subscriber: nm.Bus(),
		MaxWait:    *replicaWait,
		OnChange: func(s progression.Snapshot) {
			fmt.Printf("\n[hud] %s\n> ", formatSnapshot(s))
		},
	})
	defer hud.Close()
	shop := replica.NewReplica(replica.NewReplicaOptions{
		Source:     nm,
		Subscriber: nm.Bus(),
		MaxWait:    *replicaWait,
		Optimistic: true,
	})
	defer shop.Close()

	currency := nm.Bus().SubscribeCurrency(nm.Player(), func(e bus.CurrencyChanged) {
		log.Debug("Currency changed to %d", e.Currency)
	})
	defer currency.Unsubscribe()

	for _, r := range []*replica.Replica{hud, shop} {
		if err := r.Initialize(ctx, nm.Player()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize replica: %v\n", err)
			os.Exit(1)
		}
	}

	c := &console{
		ctx:     ctx,
		nm:      nm,
		shop:    shop,
		catalog: catalog,
		gate:    abilities.NewGate(abilities.NewGateOptions{Levels: shop}),
		lives:   abilities.NewLives(shop),
	}
	fmt.Printf("Logged in as %s. Commands: buy <key>, collect [n], dash, die, run, status, shop, quit\n", nm.Player())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println("Received stop signal, exiting.")
			return
		case <-nm.Done():
			fmt.Println("Server disconnected.")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !c.handle(strings.Fields(line)) {
				return
			}
		}
	}
}

type console struct {
	ctx     context.Context
	nm      *network.NetworkManager
	shop    *replica.Replica
	catalog progression.Catalog
	gate    *abilities.Gate
	lives   *abilities.Lives
}

// handle runs one command and returns false when the client should exit.
func (c *console) handle(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "quit", "exit":
		return false
	case "status":
		fmt.Println(formatSnapshot(c.shop.Snapshot()))
		fmt.Printf("lives: %d/%d speed: x%.1f jump: x%.1f double jump: %t\n",
			c.lives.Left(), c.gate.MaxLives(), c.gate.SpeedMultiplier(), c.gate.JumpMultiplier(), c.gate.CanDoubleJump())
	case "shop":
		for _, u := range c.catalog.List() {
			fmt.Printf("%-10s %4d  level %d  %s\n", u.Key, u.Cost, c.shop.CurrentLevel(u.Key), u.Description)
		}
	case "collect":
		n := int64(1)
		if len(args) > 1 {
			parsed, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || parsed <= 0 {
				fmt.Println("collect takes a positive number")
				return true
			}
			n = parsed
		}
		if err := c.nm.Collect(n); err != nil {
			fmt.Printf("Failed to collect: %v\n", err)
		}
	case "buy":
		if len(args) < 2 {
			fmt.Println("buy takes an upgrade key")
			return true
		}
		c.buy(progression.Key(args[1]))
	case "dash":
		if force, ok := c.gate.TryAirDash(); ok {
			fmt.Printf("Dashed with force %.0f\n", force)
		} else {
			fmt.Println("Can't dash")
		}
	case "die":
		left, out := c.lives.Lose()
		if out {
			fmt.Println("Game over. Type run to start again.")
		} else {
			fmt.Printf("%d lives left\n", left)
		}
	case "run":
		fmt.Printf("New run with %d lives\n", c.lives.Reset())
	default:
		fmt.Printf("Unknown command %q\n", args[0])
	}
	return true
}

func (c *console) buy(key progression.Key) {
	upgrade, ok := c.catalog.Lookup(key)
	if !ok {
		fmt.Printf("Unknown upgrade %q\n", key)
		return
	}
	if c.shop.CurrentCurrency() < upgrade.Cost {
		fmt.Printf("Not enough coins for %s (%d)\n", key, upgrade.Cost)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	accepted, err := c.shop.ProposePurchase(ctx, key, upgrade.Cost)
	switch {
	case err != nil:
		fmt.Printf("Failed to buy %s: %v\n", key, err)
	case accepted:
		fmt.Printf("Bought %s, now level %d\n", key, c.shop.CurrentLevel(key))
	default:
		fmt.Printf("Purchase of %s was rejected\n", key)
	}
}

func formatSnapshot(s progression.Snapshot) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "coins: %d", s.Currency())
	for _, k := range progression.UpgradeKeys() {
		fmt.Fprintf(b, " %s: %d", k, s.Level(k))
	}
	return b.String()
}
