package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"krtbank/internal/account/cache"
	accountmetrics "krtbank/internal/account/metrics"
	"krtbank/internal/account/models"
	"krtbank/internal/account/service"
	accountstore "krtbank/internal/account/store"
	"krtbank/internal/platform/config"
	"krtbank/internal/platform/logger"
	"krtbank/internal/platform/postgres"
	platformredis "krtbank/internal/platform/redis"
)

const usage = `usage: accountctl <command> [flags]

commands:
  create -name NAME -cpf CPF
  get    -id ID
  update -id ID [-name NAME] [-active true|false]
  delete -id ID [-soft]
`

// main runs one account use case against the Postgres store and the Redis
// view cache and prints the Result as JSON. Mutations land in the change
// feed that eventpublisher relays.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.StoreFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		log.Error("accountctl failed", "error", err)
		os.Exit(1)
	}
}

type command struct {
	id     string
	name   optionalString
	cpf    string
	active optionalBool
	soft   bool
}

func parseCommand(name string, args []string) (command, error) {
	var c command
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.id, "id", "", "account id")
	fs.Var(&c.name, "name", "holder name")
	fs.StringVar(&c.cpf, "cpf", "", "holder cpf")
	fs.Var(&c.active, "active", "true to activate, false to deactivate")
	fs.BoolVar(&c.soft, "soft", false, "deactivate instead of removing")
	if err := fs.Parse(args); err != nil {
		return command{}, err
	}
	return c, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, name string, args []string, out io.Writer) error {
	cmd, err := parseCommand(name, args)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := accountstore.NewPostgres(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb == nil {
		return errors.New("REDIS_URL is required")
	}
	defer rdb.Close()

	policy := service.HardDelete
	if cmd.soft {
		policy = service.SoftDelete
	}
	svc, err := service.New(repo,
		cache.New(rdb, cache.WithTTL(cfg.Redis.CacheTTL), cache.WithLogger(log)),
		service.WithLogger(log),
		service.WithMetrics(accountmetrics.New()),
		service.WithDeletePolicy(policy),
	)
	if err != nil {
		return err
	}

	var res any
	switch name {
	case "create":
		res, err = svc.Create(ctx, models.CreateAccountRequest{HolderName: cmd.name.value, Cpf: cmd.cpf})
	case "get":
		res, err = svc.GetByID(ctx, cmd.id)
	case "update":
		res, err = svc.Update(ctx, cmd.id, models.UpdateAccountRequest{HolderName: cmd.name.ptr(), Active: cmd.active.ptr()})
	case "delete":
		res, err = svc.Delete(ctx, cmd.id)
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// optionalString distinguishes an omitted flag from an empty value.
type optionalString struct {
	value string
	set   bool
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(v string) error {
	o.value, o.set = v, true
	return nil
}

func (o *optionalString) ptr() *string {
	if !o.set {
		return nil
	}
	return &o.value
}

type optionalBool struct {
	value bool
	set   bool
}

func (o *optionalBool) String() string { return strconv.FormatBool(o.value) }

func (o *optionalBool) Set(v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	o.value, o.set = b, true
	return nil
}

func (o *optionalBool) IsBoolFlag() bool { return true }

func (o *optionalBool) ptr() *bool {
	if !o.set {
		return nil
	}
	return &o.value
}
