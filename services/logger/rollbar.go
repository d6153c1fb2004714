package logsvc

import (
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/auth"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, auth.Claims
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var personSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	stdArgs := make([]interface{}, 0, len(args))
	for _, arg := range args {
		// set the caller (teacher or student)
		if claims, ok := arg.(auth.Claims); ok {
			if !personSet { // only set one person
				rollbar.SetPerson(claims.Subject, claims.Name, "")
				personSet = true
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
		stdArgs = append(stdArgs, arg)
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return rbArgs, stdArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.print(msg, stdArgs)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.print(msg, stdArgs)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.print(msg, stdArgs)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.print(msg, stdArgs)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	l.print(msg, stdArgs)
	rollbar.Close()
	l.std.Fatal(msg)
}

// Printf lets the logger receive gorm's slow query and SQL error reports as warnings.
func (l RollbarLogger) Printf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}
