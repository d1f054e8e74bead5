package main

import (
	"os"

	"github.com/pingcap-incubator/tinydoc/kv/collection"
	"github.com/pingcap-incubator/tinydoc/kv/schema"
	"github.com/pingcap-incubator/tinydoc/kv/script"
	"github.com/pingcap-incubator/tinydoc/kv/storage/standalone_storage"
	"github.com/pingcap-incubator/tinydoc/kv/util"
	"github.com/pingcap-incubator/tinydoc/log"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/atomic"
)

var (
	schemaPath  string
	scriptPath  string
	keepGoing   bool
	showMetrics bool
)

func newReplayCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "replay",
		Short: "Apply a mutation script to a collection and print its index partitions",
		Args:  cobra.NoArgs,
		RunE:  runReplayCommandFunc,
	}
	initSchemaFlag(m)
	m.Flags().StringVarP(&scriptPath, "script", "f", "", "mutation script file")
	m.Flags().BoolVar(&keepGoing, "keep-going", false, "log failed ops and continue with the next one")
	m.Flags().BoolVar(&showMetrics, "metrics", false, "print the write metrics after the replay")
	m.MarkFlagRequired("script")
	return m
}

func initSchemaFlag(m *cobra.Command) {
	fs := pflag.NewFlagSet("schema", pflag.ContinueOnError)
	fs.StringVarP(&schemaPath, "schema", "s", "", "entity schema file")
	m.Flags().AddFlagSet(fs)
	m.MarkFlagRequired("schema")
}

func runReplayCommandFunc(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := script.LoadSchema(schemaPath)
	if err != nil {
		return err
	}
	ops, err := script.LoadScript(scriptPath, s)
	if err != nil {
		return err
	}

	store := standalone_storage.NewStandAloneStorage(conf)
	if err = store.Start(); err != nil {
		return err
	}
	defer store.Stop()
	c, err := collection.Open(conf, s, store)
	if err != nil {
		return err
	}
	c.StartFlusher()

	r := newReplayer(c, keepGoing)
	handleSignal(r.stop)
	replayErr := r.run(ops)
	if err = c.Stop(); err != nil {
		return err
	}
	log.Infof("replayed %d ops of %s, %d failed", r.applied+r.failed, scriptPath, r.failed)

	printStats(os.Stdout, c)
	if showMetrics {
		if err = printMetrics(os.Stdout, s.Name); err != nil {
			return err
		}
	}
	return replayErr
}

// replayer applies script ops to a collection. Ops sharing a transaction label are applied in one
// transaction, all other ops auto-commit.
type replayer struct {
	c         *collection.Collection
	keepGoing bool

	quit *atomic.Bool

	applied int
	failed  int
}

func newReplayer(c *collection.Collection, keepGoing bool) *replayer {
	return &replayer{c: c, keepGoing: keepGoing, quit: atomic.NewBool(false)}
}

func (r *replayer) stop() {
	r.quit.Store(true)
}

func (r *replayer) run(ops []script.Op) error {
	for i := 0; i < len(ops); {
		if r.quit.Load() {
			return errors.New("replay interrupted")
		}
		j := i + 1
		if ops[i].Txn != "" {
			for j < len(ops) && ops[j].Txn == ops[i].Txn {
				j++
			}
		}
		var err error
		if ops[i].Txn == "" {
			err = r.autoCommit(ops[i])
		} else {
			err = r.txn(ops[i:j])
		}
		if err != nil {
			r.failed += j - i
			if !r.keepGoing {
				return err
			}
			log.Warnf("skip failed ops %d..%d: %v", i, j-1, err)
		} else {
			r.applied += j - i
		}
		i = j
	}
	return nil
}

func (r *replayer) autoCommit(op script.Op) error {
	if op.Delete {
		return errors.Annotatef(r.c.Delete(op.PK), "delete %d", op.PK)
	}
	return errors.Annotatef(r.c.Apply(op.PK, op.Mutations), "apply %d", op.PK)
}

func (r *replayer) txn(ops []script.Op) error {
	txn := r.c.Begin()
	for _, op := range ops {
		var err error
		if op.Delete {
			err = errors.Annotatef(txn.Delete(op.PK), "delete %d", op.PK)
		} else {
			err = errors.Annotatef(txn.Apply(op.PK, op.Mutations), "apply %d", op.PK)
		}
		if err != nil {
			txn.Rollback()
			return errors.Annotatef(err, "txn %s", op.Txn)
		}
	}
	return errors.Annotatef(txn.Commit(), "commit txn %s", ops[0].Txn)
}

func newStatsCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "stats",
		Short: "Rebuild the index partitions of a stored collection and print them",
		Args:  cobra.NoArgs,
		RunE:  runStatsCommandFunc,
	}
	initSchemaFlag(m)
	return m
}

func runStatsCommandFunc(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if !util.DirExists(conf.DBPath) {
		return errors.Errorf("no collection stored at %s", conf.DBPath)
	}
	var s *schema.EntitySchema
	if s, err = script.LoadSchema(schemaPath); err != nil {
		return err
	}
	store := standalone_storage.NewStandAloneStorage(conf)
	if err = store.Start(); err != nil {
		return err
	}
	defer store.Stop()
	c, err := collection.Open(conf, s, store)
	if err != nil {
		return err
	}
	printStats(os.Stdout, c)
	return nil
}
