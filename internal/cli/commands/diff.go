package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/metamodel/internal/orm/events"
	"github.com/conduit-lang/metamodel/internal/orm/fetchplan"
	"github.com/conduit-lang/metamodel/internal/orm/schema"
	"github.com/conduit-lang/metamodel/internal/orm/tracking"
	"github.com/conduit-lang/metamodel/internal/orm/transaction"
)

var (
	diffBefore  string
	diffAfter   string
	diffPublish bool
	diffTouch   bool
)

// errNoEntityState is returned when neither --before nor --after is given
var errNoEntityState = errors.New("at least one of --before or --after is required")

// NewDiffCommand creates the diff command
func NewDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <entity> [plan]",
		Short: "Compute the change record between two entity states",
		Long: `Capture an entity state from --before under a fetch plan, apply the
state from --after, and print the resulting change record as JSON. Only
--after yields a created record; only --before yields a deleted one.

State files are YAML mappings of property names to values. Properties
missing from a file are treated as not loaded.

With --publish the record is also sent to the Redis channel configured
under events.redis.

Examples:
  conduit-meta diff Order order-list --before old.yaml --after new.yaml
  conduit-meta diff Customer --after customer.yaml --publish`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runDiff,
	}

	cmd.Flags().StringVar(&diffBefore, "before", "", "YAML file with the loaded state")
	cmd.Flags().StringVar(&diffAfter, "after", "", "YAML file with the state to commit")
	cmd.Flags().BoolVar(&diffPublish, "publish", false, "Publish records to the configured Redis channel")
	cmd.Flags().BoolVar(&diffTouch, "touch", false, "Emit update records without changes")

	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	if diffBefore == "" && diffAfter == "" {
		return errNoEntityState
	}

	ws, err := loadWorkspace(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = ws.logger.Sync() }()

	class, err := ws.class(cmd, args[0])
	if err != nil {
		return err
	}
	planName := fetchplan.PlanLocal
	if len(args) == 2 {
		planName = args[1]
	}
	plan, err := ws.plan(cmd, class, planName)
	if err != nil {
		return err
	}

	before, err := readState(diffBefore)
	if err != nil {
		return err
	}
	after, err := readState(diffAfter)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := ws.publisher(diffPublish)
	if err != nil {
		return err
	}

	opts := []transaction.Option{transaction.WithLogger(ws.logger)}
	if diffTouch {
		opts = append(opts, transaction.WithTouchEvents())
	}
	manager := transaction.NewManager(ws.registry, publisher, opts...)

	records, err := manager.WithUnitOfWork(cmd.Context(), func(ctx context.Context, uow *transaction.UnitOfWork) error {
		return applyStates(uow, class, plan, before, after)
	})
	closePublisher()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes")
		return nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func applyStates(uow *transaction.UnitOfWork, class *schema.ClassDescriptor, plan *fetchplan.Plan, before, after map[string]any) error {
	if before == nil {
		return uow.Create(newEntity(class, after), plan)
	}

	entity := newEntity(class, before)
	if _, err := uow.Load(entity, plan); err != nil {
		return err
	}
	if after == nil {
		return uow.Delete(entity)
	}

	for _, name := range entity.Loaded() {
		if _, ok := after[name]; !ok {
			entity.Unset(name)
		}
	}
	for name, value := range after {
		entity.Set(name, value)
	}
	return nil
}

func newEntity(class *schema.ClassDescriptor, values map[string]any) *tracking.MapEntity {
	var id any
	if pk := class.PrimaryKey(); pk != nil {
		id = values[pk.Name()]
	}
	return tracking.NewMapEntity(class.Name(), id, values)
}

func readState(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity state: %w", err)
	}
	state := make(map[string]any)
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse entity state %s: %w", path, err)
	}
	return state, nil
}

// publisher delivers records to an in-process dispatcher, and to Redis when
// requested. The returned func drains the async queue and closes Redis.
func (ws *workspace) publisher(toRedis bool) (events.Publisher, func(), error) {
	cfg := ws.cfg.Events

	queue := events.NewAsyncQueue(cfg.AsyncWorkers, cfg.QueueSize, events.WithQueueLogger(ws.logger))
	queue.Start()

	dispatcher := events.NewDispatcher(events.WithQueue(queue), events.WithDispatcherLogger(ws.logger))
	dispatcher.Subscribe(events.AnyClass, events.ListenerFunc(func(ctx context.Context, record *events.ChangeRecord) error {
		ws.logger.Sugar().Infof("delivered %s", record)
		return nil
	}), events.Async())

	if !toRedis {
		return dispatcher, queue.Shutdown, nil
	}

	if !cfg.Redis.Enabled() {
		queue.Shutdown()
		return nil, nil, fmt.Errorf("--publish needs events.redis.addr to be configured")
	}
	redisPublisher, err := events.NewRedisPublisher(events.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Channel:  cfg.Redis.Channel,
	})
	if err != nil {
		queue.Shutdown()
		return nil, nil, err
	}

	closeAll := func() {
		queue.Shutdown()
		_ = redisPublisher.Close()
	}
	return events.MultiPublisher{dispatcher, redisPublisher}, closeAll, nil
}
