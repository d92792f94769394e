package test

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ledgerflow/account"
	"ledgerflow/amount"
	"ledgerflow/engine"
	"ledgerflow/ledger"
	"ledgerflow/test/infra"
)

var (
	flClients = flag.Int("clients", 8, "number of concurrent clients")
	flActions = flag.Int("actions", 400, "actions generated per client")
	flSeed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN     = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

// genScript builds one client's random action sequence. Transaction ids are
// partitioned per client (client id in the high bits), so concurrently
// running scripts never contend for ids and a per-client sequential replay
// is an exact reference model.
func genScript(rng *rand.Rand, client account.ClientID, n int) []engine.Action {
	acts := make([]engine.Action, 0, n)
	var deposits []ledger.TxID
	seq := uint32(0)
	nextTx := func() ledger.TxID {
		seq++
		return ledger.TxID(uint32(client)<<16 | seq)
	}
	pick := func() ledger.TxID {
		return deposits[rng.Intn(len(deposits))]
	}
	randAmount := func() amount.Amount {
		return amount.Amount((1 + rng.Int63n(100_000)) * 100) // 0.01 .. 1000.00
	}

	for i := 0; i < n; i++ {
		switch p := rng.Intn(100); {
		case p < 40:
			act := engine.Action{Kind: engine.ActionDeposit, Client: client, Tx: nextTx(), Amount: randAmount()}
			deposits = append(deposits, act.Tx)
			acts = append(acts, act)
		case p < 65:
			// Often exceeds available on purpose.
			acts = append(acts, engine.Action{Kind: engine.ActionWithdrawal, Client: client, Tx: nextTx(), Amount: randAmount()})
		case p < 80 && len(deposits) > 0:
			acts = append(acts, engine.Action{Kind: engine.ActionDispute, Client: client, Tx: pick()})
		case p < 90 && len(deposits) > 0:
			acts = append(acts, engine.Action{Kind: engine.ActionResolve, Client: client, Tx: pick()})
		case p < 94 && len(deposits) > 0:
			acts = append(acts, engine.Action{Kind: engine.ActionChargeback, Client: client, Tx: pick()})
		default:
			// Hostile rows: reused ids, foreign partitions, zero amounts.
			switch rng.Intn(3) {
			case 0:
				if len(deposits) > 0 {
					acts = append(acts, engine.Action{Kind: engine.ActionDeposit, Client: client, Tx: pick(), Amount: randAmount()})
				}
			case 1:
				foreign := ledger.TxID(uint32(client+1)<<16 | 1)
				acts = append(acts, engine.Action{Kind: engine.ActionDispute, Client: client, Tx: foreign})
			default:
				acts = append(acts, engine.Action{Kind: engine.ActionDeposit, Client: client, Tx: nextTx(), Amount: amount.Zero})
			}
		}
	}
	return acts
}

// replay runs one client's script through a fresh sequential processor and
// returns the account it ends up with.
func replay(script []engine.Action) *account.Account {
	proc := engine.NewProcessor(ledger.NewMemoryStore())
	acct := account.New()
	for _, act := range script {
		_ = proc.Apply(context.Background(), acct, act)
	}
	return acct
}

// runStress submits every script concurrently through one hub over store,
// then checks each final snapshot against the sequential reference model
// and the balance invariants.
func runStress(t *testing.T, store ledger.Store, scripts map[account.ClientID][]engine.Action, seed int64) {
	t.Helper()
	ctx := context.Background()
	hub := engine.NewHub(store, zerolog.Nop(), nil)

	g, ctx2 := errgroup.WithContext(ctx)
	for _, script := range scripts {
		script := script
		g.Go(func() error {
			for _, act := range script {
				if err := hub.Submit(ctx2, act); err != nil {
					return fmt.Errorf("submit: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("actors errored: %v (seed=%d)", err, seed)
	}

	snaps, err := hub.Summarize(ctx)
	if err != nil {
		t.Fatalf("summarize: %v (seed=%d)", err, seed)
	}
	if len(snaps) != len(scripts) {
		t.Fatalf("got %d snapshots, want %d (seed=%d)", len(snaps), len(scripts), seed)
	}

	for _, s := range snaps {
		if s.Held < 0 {
			t.Errorf("client %d held %s < 0 (seed=%d)", s.Client, s.Held, seed)
		}
		if s.Total != s.Available+s.Held {
			t.Errorf("client %d total %s != available %s + held %s (seed=%d)", s.Client, s.Total, s.Available, s.Held, seed)
		}
		ref := replay(scripts[s.Client])
		if s.Available != ref.Available() || s.Held != ref.Held() || s.Locked != ref.Locked() {
			t.Errorf("client %d diverged from sequential reference: got %s/%s locked=%v, want %s/%s locked=%v (seed=%d)",
				s.Client, s.Available, s.Held, s.Locked, ref.Available(), ref.Held(), ref.Locked(), seed)
		}
	}
}

func genScripts(seed int64, clients, actions int) map[account.ClientID][]engine.Action {
	rng := rand.New(rand.NewSource(seed))
	scripts := make(map[account.ClientID][]engine.Action, clients)
	for c := 1; c <= clients; c++ {
		id := account.ClientID(c)
		scripts[id] = genScript(rng, id, actions)
	}
	return scripts
}

func TestEngineStress(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	scripts := genScripts(seed, *flClients, *flActions)
	runStress(t, ledger.NewMemoryStore(), scripts, seed)
}

func TestEngineStressPostgres(t *testing.T) {
	flag.Parse()
	seed := *flSeed

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var (
		pgC *infra.PGContainer
		dsn string
		err error
	)
	switch {
	case *flDSN != "":
		dsn = *flDSN
		pgC = &infra.PGContainer{}
	case os.Getenv("LEDGERFLOW_TEST_PG_DSN") != "":
		dsn = os.Getenv("LEDGERFLOW_TEST_PG_DSN")
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Skipf("no docker and no local postgres: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	store := ledger.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	// Fresh id space for each run against a reused database.
	if _, err := pool.Exec(ctx, `TRUNCATE transactions`); err != nil {
		t.Fatalf("truncate transactions: %v", err)
	}

	scripts := genScripts(seed, 4, 100)
	runStress(t, store, scripts, seed)
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}
