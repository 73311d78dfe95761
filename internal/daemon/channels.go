package daemon

import (
	"context"
	"encoding/json"

	"github.com/vibely/vibely/pkg/assistant"
	"github.com/vibely/vibely/pkg/gateway"
)

var (
	stringArg  = map[string]interface{}{"type": "string"}
	stringList = map[string]interface{}{"type": "array", "items": stringArg}
)

// registerChannels exposes the operations as gateway channels
func (d *Daemon) registerChannels() error {
	channels := []struct {
		name    string
		schema  map[string]interface{}
		handler gateway.ChannelHandler
	}{
		{"askClaude", gateway.ArgsSchema(1, stringArg), d.askChannel(assistant.ProviderAnthropic)},
		{"askGPT", gateway.ArgsSchema(1, stringArg), d.askChannel(assistant.ProviderOpenAI)},
		{"verify-license", gateway.ArgsSchema(1, stringArg), d.handleVerifyLicense},
		{"writeFile", gateway.ArgsSchema(3, stringArg, stringArg, stringArg), d.handleWriteFile},
		{"runCommand", gateway.ArgsSchema(2, stringArg, stringArg, stringList), d.handleRunCommand},
		{"deployTo", gateway.ArgsSchema(2, stringArg, stringArg), d.handleDeployTo},
		{"deployHooks", gateway.ArgsSchema(0), d.handleDeployHooks},
	}

	for _, ch := range channels {
		if err := d.gatewayServer.RegisterChannel(ch.name, ch.schema, ch.handler); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) askChannel(provider string) gateway.ChannelHandler {
	return func(ctx context.Context, args []json.RawMessage) (interface{}, error) {
		var prompt string
		if err := gateway.Arg(args, 0, &prompt); err != nil {
			return nil, err
		}
		return d.Ask(ctx, provider, prompt), nil
	}
}

func (d *Daemon) handleVerifyLicense(ctx context.Context, args []json.RawMessage) (interface{}, error) {
	var key string
	if err := gateway.Arg(args, 0, &key); err != nil {
		return nil, err
	}
	return d.VerifyLicense(ctx, key), nil
}

func (d *Daemon) handleWriteFile(ctx context.Context, args []json.RawMessage) (interface{}, error) {
	var sessionID, path, content string
	if err := gateway.Arg(args, 0, &sessionID); err != nil {
		return nil, err
	}
	if err := gateway.Arg(args, 1, &path); err != nil {
		return nil, err
	}
	if err := gateway.Arg(args, 2, &content); err != nil {
		return nil, err
	}
	return d.WriteFile(ctx, sessionID, path, []byte(content)), nil
}

func (d *Daemon) handleRunCommand(ctx context.Context, args []json.RawMessage) (interface{}, error) {
	var sessionID, command string
	var cmdArgs []string
	if err := gateway.Arg(args, 0, &sessionID); err != nil {
		return nil, err
	}
	if err := gateway.Arg(args, 1, &command); err != nil {
		return nil, err
	}
	if err := gateway.OptionalArg(args, 2, &cmdArgs); err != nil {
		return nil, err
	}
	return d.RunCommand(ctx, sessionID, command, cmdArgs), nil
}

func (d *Daemon) handleDeployTo(ctx context.Context, args []json.RawMessage) (interface{}, error) {
	var target, sessionID string
	if err := gateway.Arg(args, 0, &target); err != nil {
		return nil, err
	}
	if err := gateway.Arg(args, 1, &sessionID); err != nil {
		return nil, err
	}
	return d.DeployTo(ctx, target, sessionID), nil
}

func (d *Daemon) handleDeployHooks(ctx context.Context, _ []json.RawMessage) (interface{}, error) {
	return d.TriggerHooks(ctx), nil
}
