package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/moodchat/backend/internal/app"
	"github.com/zhouzirui/moodchat/backend/internal/config"
	"github.com/zhouzirui/moodchat/backend/internal/logging"
	"github.com/zhouzirui/moodchat/backend/internal/service/chat"
)

func main() {
	logging.Preinit()

	if err := godotenv.Load(); err != nil {
		slog.Warn("无法加载 .env，改用系统环境变量", "error", err)
	}

	stream := flag.Bool("stream", true, "流式打印回复 (需要 ARK_STREAM=true)")
	timeout := flag.Duration("timeout", 60*time.Second, "单轮对话超时时间")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("配置加载失败", "error", err)
		os.Exit(1)
	}

	logCloser, err := logging.Init(cfg.Log)
	if err != nil {
		slog.Error("日志初始化失败", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.BuildChatService(ctx, cfg)
	if err != nil {
		slog.Error("会话服务初始化失败", "error", err)
		os.Exit(1)
	}

	fmt.Println("Mood-aware chat")
	fmt.Printf("Model: %s\n", cfg.AI.Model)
	fmt.Println("Type 'quit' or 'exit' to end")
	fmt.Println()

	r := &repl{
		svc:     svc,
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		stream:  *stream && svc.SupportsStreaming(),
		timeout: *timeout,
	}
	if err := r.run(ctx); err != nil {
		slog.Error("对话中断", "error", err)
		os.Exit(1)
	}
}

type repl struct {
	svc     *chat.Service
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	stream  bool
	timeout time.Duration
}

// run 读取用户输入直到 quit/exit 或输入结束。单轮失败只打印错误，不会终止循环。
func (r *repl) run(ctx context.Context) error {
	session, err := r.svc.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") || strings.EqualFold(input, "exit") {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.turn(ctx, session.ID, input)
	}
}

func (r *repl) turn(ctx context.Context, sessionID, input string) {
	turnCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var (
		result chat.TurnResult
		err    error
	)
	if r.stream {
		started := false
		result, err = r.svc.StreamTurn(turnCtx, sessionID, input, func(delta string) error {
			if !started {
				fmt.Fprint(r.out, "Assistant: ")
				started = true
			}
			_, werr := fmt.Fprint(r.out, delta)
			return werr
		})
		if started {
			fmt.Fprintln(r.out)
		}
	} else {
		result, err = r.svc.Turn(turnCtx, sessionID, input)
	}
	if err != nil {
		fmt.Fprintf(r.errOut, "Turn failed: %v\n", err)
		return
	}

	fmt.Fprintf(r.out, "Emotion: %s (confidence: %.2f)\n", result.Sentiment.Label, result.Sentiment.Confidence)
	fmt.Fprintf(r.out, "Trend: %s\n", result.Trend)
	fmt.Fprintf(r.out, "Strategy: %s\n", result.Strategy)
	if !r.stream {
		fmt.Fprintf(r.out, "Assistant: %s\n", result.Reply)
	}
	fmt.Fprintln(r.out)
}
