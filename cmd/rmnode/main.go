// main.go - Resource-machine node daemon.
//
// Starts a node that maintains the append-only ledger, accepts proven
// compliance statements over HTTP (locally via the admin endpoint, from
// peers via gossip), and periodically persists the ledger and announces its
// anchor.
//
// Usage:
//   rmnode -config rmnode.json
//
// Architecture:
//   - The p2p listener handles peer gossip (statements, anchor announces)
//   - The admin listener handles local submissions, health and metrics
//   - Groth16 keys are generated on first start and reused from key_dir

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"

	"resourcemachine/internal/compliance"
	"resourcemachine/internal/ledger"
	"resourcemachine/internal/poseidon"
	"resourcemachine/internal/resource"
	"resourcemachine/p2p"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "rmnode.json", "path to the node configuration file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger.Info().
		Str("node", cfg.NodeID).
		Str("version", version).
		Str("nullifier_scheme", cfg.NullifierScheme).
		Msg("starting")

	// Step 1: warm the permutation parameter cache so first-use generation
	// does not land on a submission path.
	start := time.Now()
	if err := poseidon.Warm(); err != nil {
		logger.Fatal().Err(err).Msg("parameter generation failed")
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("permutation parameters ready")

	// Step 2: compile the compliance circuit and load or generate keys.
	var vk groth16.VerifyingKey
	var pk groth16.ProvingKey
	ccs, err := compliance.Compile()
	if err != nil {
		logger.Fatal().Err(err).Msg("circuit compilation failed")
	}
	if err := os.MkdirAll(cfg.KeyDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("creating key directory")
	}
	start = time.Now()
	pk, vk, err = compliance.SetupOrLoadKeys(ccs,
		filepath.Join(cfg.KeyDir, "compliance_pk.bin"),
		filepath.Join(cfg.KeyDir, "compliance_vk.bin"))
	if err != nil {
		logger.Fatal().Err(err).Msg("key setup failed")
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("groth16 keys ready")

	metrics := NewMetrics()

	// Prove and verify a throwaway statement so broken or mismatched key
	// material is caught at startup rather than on the first submission.
	if !cfg.TransparentMode {
		elapsed, err := provingSelfTest(ccs, pk, vk)
		if err != nil {
			logger.Fatal().Err(err).Msg("proving self-test failed")
		}
		metrics.RecordProofTime(elapsed)
		logger.Info().Dur("elapsed", elapsed).Msg("proving self-test passed")
	}

	// Step 3: load or create the ledger.
	var l *ledger.Ledger
	if loaded, err := ledger.LoadFromFile(cfg.LedgerPath); err == nil {
		l = loaded
		logger.Info().Int("commitments", l.Size()).Msg("ledger loaded")
	} else {
		l = ledger.New()
		logger.Info().Msg("starting with an empty ledger")
	}

	// Step 4: start the p2p node.
	verifyKey := vk
	if cfg.TransparentMode {
		verifyKey = nil
		logger.Warn().Msg("transparent mode: proofs are not verified")
	}
	var wg sync.WaitGroup
	node := p2p.NewNode(cfg.NodeID, cfg.ListenAddr, cfg.Peers, l, verifyKey, &wg)
	ready := make(chan struct{})
	node.StartServer(ready)
	<-ready
	logger.Info().Str("addr", cfg.ListenAddr).Msg("p2p listener up")

	// Step 5: admin endpoints.
	limiter := NewPeerRateLimiter(cfg.RateLimitTokens, cfg.RateLimitRefill, time.Second)
	health := NewHealthChecker(version)
	health.RegisterComponent("ledger", func() error {
		if l.Size() < 0 {
			return fmt.Errorf("ledger unavailable")
		}
		return nil
	})

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h := health.CheckHealth()
		w.Header().Set("Content-Type", "application/json")
		if h.OverallStatus != Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	adminMux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(metrics.Snapshot())
	})
	adminMux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(r.RemoteAddr) {
			metrics.RecordRateLimited()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		var payload p2p.StatementPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			metrics.RecordRejected()
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		st, proof, err := payload.Decode()
		if err != nil {
			metrics.RecordRejected()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := node.SubmitStatement(st, proof); err != nil {
			if err == ledger.ErrDoubleSpend {
				metrics.RecordDoubleSpend()
			} else {
				metrics.RecordRejected()
			}
			logger.Warn().Err(err).Msg("submission rejected")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		metrics.RecordAccepted(l.Size())
		logger.Info().Int("ledger_size", l.Size()).Msg("statement accepted")
		w.WriteHeader(http.StatusOK)
	})

	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminMux}
	go func() {
		logger.Info().Str("addr", cfg.AdminAddr).Msg("admin listener up")
		if err := adminServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	// Step 6: periodic persistence and anchor gossip.
	ticker := time.NewTicker(time.Duration(cfg.TimeoutSeconds) * time.Second)
	defer ticker.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := l.SaveToFile(cfg.LedgerPath); err != nil {
				logger.Error().Err(err).Msg("ledger persistence failed")
			}
			node.AnnounceAnchor()
		case sig := <-stop:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			if err := l.SaveToFile(cfg.LedgerPath); err != nil {
				logger.Error().Err(err).Msg("final ledger save failed")
			}
			adminServer.Close()
			return
		}
	}
}

// provingSelfTest builds an ephemeral chained statement, proves it with the
// loaded key pair and verifies the proof. Returns the proving time. Ephemeral
// resources need no ledger state, so the check runs before the node is
// reachable.
func provingSelfTest(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (time.Duration, error) {
	nk, err := resource.GenerateNullifierKey()
	if err != nil {
		return 0, err
	}
	var logic, label, value, nonce fr.Element
	logic.SetRandom()
	label.SetRandom()
	value.SetRandom()
	nonce.SetRandom()

	consumed, err := resource.New(logic, label, value, 1, nonce, nk.Commit())
	if err != nil {
		return 0, err
	}
	consumed.Ephemeral = true

	nf, err := consumed.NullifierOf(resource.SchemePureHash, nk)
	if err != nil {
		return 0, err
	}
	created, err := resource.New(logic, label, value, 1, nf.Element(), nk.Commit())
	if err != nil {
		return 0, err
	}

	var rcv fr.Element
	if _, err := rcv.SetRandom(); err != nil {
		return 0, err
	}
	w := &compliance.Witness{
		Consumed: consumed,
		Nk:       nk,
		Scheme:   resource.SchemePureHash,
		Created:  created,
		Rcv:      rcv,
	}
	st, err := compliance.Build(w)
	if err != nil {
		return 0, err
	}

	begin := time.Now()
	proof, err := compliance.Prove(ccs, pk, st, w)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(begin)
	if err := compliance.Verify(vk, st, proof); err != nil {
		return 0, err
	}
	return elapsed, nil
}
