package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"ZKPong/internal/bootstrap"
	"ZKPong/internal/pong"
	"ZKPong/internal/prover"
	"ZKPong/internal/report"
	"ZKPong/internal/transcript"
	"ZKPong/pkg/logger"
	"ZKPong/sdk/go/zkpong"
)

func outFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "输出文件，缺省或 - 表示标准输出",
	}
}

func (e *env) simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "无界面运行一局并输出证明输入",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ticks", Usage: "回合预算，缺省使用配置"},
			&cli.StringFlag{Name: "script", Usage: "JSON 格式的输入脚本文件"},
			&cli.BoolFlag{Name: "transcript", Usage: "只输出转录而不是证明输入"},
			outFlag(),
		},
		Action: func(c *cli.Context) error {
			tuning := bootstrap.Tuning(e.cfg)
			if n := c.Int("ticks"); n > 0 {
				tuning = tuning.WithMaxTicks(n)
			}
			script, err := readScript(c.String("script"))
			if err != nil {
				return err
			}
			if err := pong.ValidateScript(script, tuning.MaxTicks); err != nil {
				return err
			}

			rec := transcript.NewRecorder(tuning.MaxTicks + 1)
			final, err := pong.NewGame(tuning, rec, pong.WithScript(script)).Run(c.Context, pong.ImmediateScheduler{})
			if err != nil {
				return err
			}
			log := rec.Freeze()
			logger.L().Info("模拟完成", "ticks", final.Tick, "outcome", string(pong.OutcomeOf(final, tuning.MaxTicks)),
				"score", fmt.Sprintf("%d:%d", final.LeftScore, final.RightScore))

			if c.Bool("transcript") {
				return writeJSON(c, log.Entries())
			}
			builder, err := bootstrap.InputBuilder(e.cfg)
			if err != nil {
				return err
			}
			input, err := builder.Build(c.Context, log)
			if err != nil {
				return err
			}
			return writeJSON(c, input)
		},
	}
}

func (e *env) proveCommand() *cli.Command {
	return &cli.Command{
		Name:      "prove",
		Usage:     "在本地为转录生成并校验证明",
		ArgsUsage: "<transcript.json>",
		Flags:     []cli.Flag{outFlag()},
		Action: func(c *cli.Context) error {
			entries, err := readTranscript(c.Args().First())
			if err != nil {
				return err
			}
			if err := transcript.Validate(entries); err != nil {
				return err
			}
			builder, err := bootstrap.InputBuilder(e.cfg)
			if err != nil {
				return err
			}
			input, err := builder.Build(c.Context, transcript.NewLog(entries))
			if err != nil {
				return err
			}
			p, v, err := bootstrap.ProverBackend(e.cfg)
			if err != nil {
				return err
			}

			started := time.Now()
			proof, err := prover.ProveAndVerify(c.Context, p, v, input)
			if err != nil {
				return err
			}
			logger.L().Info("证明已通过校验", "backend", proof.Backend, "entries", len(entries),
				"duration", time.Since(started).String())
			return writeJSON(c, proof)
		},
	}
}

func (e *env) submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "把转录提交给守护进程并等待证明结果",
		ArgsUsage: "<transcript.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080", Usage: "zkpongd 地址", EnvVars: []string{"ZKPONG_SERVER"}},
			&cli.StringFlag{Name: "token", Usage: "Bearer 令牌", EnvVars: []string{"ZKPONG_TOKEN"}},
			&cli.StringFlag{Name: "id", Usage: "会话 ID，缺省由服务端生成"},
			&cli.BoolFlag{Name: "no-wait", Usage: "提交后立即返回"},
			&cli.DurationFlag{Name: "interval", Value: time.Second, Usage: "轮询间隔"},
			outFlag(),
		},
		Action: func(c *cli.Context) error {
			entries, err := readTranscript(c.Args().First())
			if err != nil {
				return err
			}
			client, err := zkpong.NewClient(c.String("server"), nil)
			if err != nil {
				return err
			}
			client.SetAccessToken(c.String("token"))

			req := zkpong.SubmitRequest{ID: c.String("id"), Transcript: make([]zkpong.Entry, len(entries))}
			for i, entry := range entries {
				req.Transcript[i] = zkpong.Entry(entry)
			}
			sess, err := client.SubmitTranscript(c.Context, req)
			if err != nil {
				return err
			}
			logger.L().Info("转录已提交", "session_id", sess.ID, "status", sess.Status)
			if !c.Bool("no-wait") {
				sess, err = client.WaitForSession(c.Context, sess.ID, c.Duration("interval"))
				if err != nil {
					return err
				}
			}
			if err := writeJSON(c, sess); err != nil {
				return err
			}
			if sess.Status == zkpong.StatusFailed {
				return fmt.Errorf("会话 %s 失败: %s %s", sess.ID, sess.ErrorCode, sess.LastError)
			}
			return nil
		},
	}
}

func (e *env) plotCommand() *cli.Command {
	return &cli.Command{
		Name:      "plot",
		Usage:     "把转录渲染为 HTML 图表",
		ArgsUsage: "<transcript.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "页面标题"},
			outFlag(),
		},
		Action: func(c *cli.Context) error {
			entries, err := readTranscript(c.Args().First())
			if err != nil {
				return err
			}
			w, closeFn, err := output(c)
			if err != nil {
				return err
			}
			var opts []report.Option
			if title := c.String("title"); title != "" {
				opts = append(opts, report.WithTitle(title))
			}
			if err := report.Render(w, entries, opts...); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
}

func (e *env) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "用配置中的密钥签发 API 访问令牌",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "cli", Usage: "令牌主体"},
			&cli.StringSliceFlag{Name: "scope", Usage: "权限范围，可重复指定"},
		},
		Action: func(c *cli.Context) error {
			svc, err := bootstrap.AuthService(e.cfg)
			if err != nil {
				return err
			}
			token, expires, err := svc.IssueToken(c.String("subject"), c.StringSlice("scope")...)
			if err != nil {
				return err
			}
			logger.Audit().Info("token_issued", "subject", c.String("subject"), "expires_at", expires.UTC().Format(time.RFC3339))
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

func (e *env) verifierCommand() *cli.Command {
	return &cli.Command{
		Name:  "verifier",
		Usage: "导出 Groth16 校验合约 (Solidity)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ticks", Usage: "回合预算，缺省使用配置"},
			outFlag(),
		},
		Action: func(c *cli.Context) error {
			tuning := bootstrap.Tuning(e.cfg)
			if n := c.Int("ticks"); n > 0 {
				tuning = tuning.WithMaxTicks(n)
			}
			w, closeFn, err := output(c)
			if err != nil {
				return err
			}
			if err := bootstrap.Groth16(e.cfg, tuning).ExportSolidity(tuning.MaxTicks+1, w); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
}

func readScript(path string) ([]pong.ScriptedInput, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取输入脚本失败: %w", err)
	}
	var script []pong.ScriptedInput
	if err := json.Unmarshal(content, &script); err != nil {
		return nil, fmt.Errorf("解析输入脚本失败: %w", err)
	}
	if script == nil {
		return nil, errors.New("输入脚本为空")
	}
	return script, nil
}
