// adduser はIdPのIDとローカルユーザーを作成する管理用コマンド。
// 最初の管理者の作成など、APIのsignupを使えない場合に使用する。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/hitoshi/despesas/internal/auth"
	"github.com/hitoshi/despesas/internal/config"
	"github.com/hitoshi/despesas/internal/database"
	"github.com/hitoshi/despesas/internal/model"
	"github.com/hitoshi/despesas/internal/repository"
)

// signupper はユーザー作成に必要なインターフェース。
type signupper interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
}

// connectFunc は設定からsignupperを構成する。戻り値のcloseで接続を閉じる。
type connectFunc func(ctx context.Context) (svc signupper, closeFn func() error, err error)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, connectFromEnv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, connect connectFunc) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email")
	name := fs.String("name", "", "Display name")
	role := fs.String("role", string(model.RoleUser), "Role (admin or user)")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" || *name == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <email> -name <name> [-role admin|user] [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email, name")
	}
	if !model.Role(*role).IsValid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	svc, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	user, err := svc.Signup(ctx, auth.SignupInput{
		Email:    *email,
		Password: password,
		Name:     *name,
		Role:     model.Role(*role),
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailInUse {
			return fmt.Errorf("user %s already exists", *email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d (role %s)\n", user.Email, user.ID, user.Role)
	return nil
}

// connectFromEnv は環境変数の設定でPostgreSQLとIdPに接続する。
func connectFromEnv(ctx context.Context) (signupper, func() error, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, nil, err
	}

	var idp auth.IdentityProvider
	if cfg.IdentityProvider == config.IdentityProviderLocal {
		local, err := auth.NewLocalProvider(cfg.LocalIdentitiesPath)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		idp = local
	} else {
		idp = auth.NewGoTrueProvider(auth.GoTrueConfig{
			URL:        cfg.GoTrueURL,
			ServiceKey: cfg.GoTrueServiceKey,
			JWTSecret:  cfg.GoTrueJWTSecret,
		})
	}

	svc := auth.NewService(idp,
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
		nil,
	)
	return svc, db.Close, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// パイプやテストなど端末以外からの入力
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
