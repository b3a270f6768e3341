// Command mm2p2p-demo exercises a full send/recv round trip between
// two local peers over an in-memory DHT swarm, printing the result.
// It exists to let a developer see the Scheduler, chunk codec and
// rate limiter work together without standing up real infrastructure
// (spec §1 places the real DHT engine itself out of scope).
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/baselayer-io/KomodoPlatform/chunk"
	"github.com/baselayer-io/KomodoPlatform/common/log"
	"github.com/baselayer-io/KomodoPlatform/core"
	"github.com/baselayer-io/KomodoPlatform/dht"
	"github.com/baselayer-io/KomodoPlatform/gets"
	"github.com/baselayer-io/KomodoPlatform/key"
)

// Automatically set through -ldflags.
var (
	version   = "dev"
	gitCommit = "none"
)

var subjectFlag = &cli.StringFlag{
	Name:  "subject",
	Usage: "subject-salt identifying the message slot between the two demo peers",
	Value: "mm2p2p-demo",
}

var messageFlag = &cli.StringFlag{
	Name:  "message",
	Usage: "payload bob should receive from alice",
	Value: "hello from alice",
}

var timeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "how long bob waits for the payload before giving up",
	Value: 5 * time.Second,
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: "DEBUG or INFO (mirrors MM2_P2P_LOG_LEVEL)",
	Value: "INFO",
}

func main() {
	app := &cli.App{
		Name:    "mm2p2p-demo",
		Usage:   "send a payload from one in-process peer to another over mm2p2p",
		Version: fmt.Sprintf("%s (%s)", version, gitCommit),
		Flags:   []cli.Flag{subjectFlag, messageFlag, timeoutFlag, logLevelFlag},
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.DefaultLogger().Fatalw("mm2p2p-demo exited with error", "error", err)
	}
}

func run(c *cli.Context) error {
	logger := log.DefaultLogger()
	if c.String("log-level") == "DEBUG" {
		logger = log.New(os.Stdout, log.DebugLevel, true)
	}

	alice, err := randomPeer()
	if err != nil {
		return fmt.Errorf("generating alice's key: %w", err)
	}
	bob, err := randomPeer()
	if err != nil {
		return fmt.Errorf("generating bob's key: %w", err)
	}

	network := dht.NewMockNetwork()
	aliceNode := network.NewNode("127.0.0.1", 19001)
	bobNode := network.NewNode("127.0.0.1", 19002)

	aliceCtx, err := core.Initialize(alice,
		core.WithLogger(logger.Named("alice")),
		core.WithPrimitive(func(log.Logger) dht.Primitive { return aliceNode }),
	)
	if err != nil {
		return fmt.Errorf("initializing alice: %w", err)
	}
	defer aliceCtx.Stop()

	bobCtx, err := core.Initialize(bob,
		core.WithLogger(logger.Named("bob")),
		core.WithPrimitive(func(log.Logger) dht.Primitive { return bobNode }),
	)
	if err != nil {
		return fmt.Errorf("initializing bob: %w", err)
	}
	defer bobCtx.Stop()

	subject, err := chunk.NewSalt([]byte(c.String("subject")))
	if err != nil {
		return fmt.Errorf("invalid subject: %w", err)
	}
	message := []byte(c.String("message"))

	fmt.Printf("alice (%s) -> bob (%s): %q\n", alice.String()[:12], bob.String()[:12], message)

	handle, err := aliceCtx.Send(bob, subject, message)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer handle.Close()

	future := bobCtx.Recv(subject, gets.AlwaysAccept)
	defer future.Drop()

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	start := time.Now()
	got, err := future.Await(ctx)
	if err != nil {
		return fmt.Errorf("bob never received the payload: %w", err)
	}

	fmt.Printf("bob received %q after %s\n", got, time.Since(start).Round(time.Millisecond))
	return nil
}

func randomPeer() (key.Peer, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return key.Peer{}, err
	}
	return key.FromBytes(raw[:])
}
