package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shapeshift/internal/config"
	"shapeshift/internal/db"
	"shapeshift/internal/domain"
	"shapeshift/internal/llm"
	"shapeshift/internal/repository"
	"shapeshift/internal/service"
)

var (
	userID   string
	apiKey   string
	personas []string
	title    string
)

// app agrupa los servicios que comparten los subcomandos.
type app struct {
	cfg           *config.Config
	logger        *zap.Logger
	pool          *pgxpool.Pool
	settings      *service.SettingsService
	personas      *service.PersonaService
	conversations *service.ConversationService
	renderer      *service.Renderer
}

var rootCmd = &cobra.Command{
	Use:   "cli_chat",
	Short: "Terminal client for chatting with shapes",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if userID == "" {
			userID = os.Getenv("SHAPES_USER_ID")
		}
		if userID == "" {
			userID = uuid.NewString()
			fmt.Fprintf(cmd.ErrOrStderr(), "usando user id nuevo %s (export SHAPES_USER_ID para reutilizarlo)\n", userID)
		}
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a conversation with one or more shapes",
	Long: `Start a conversation with one or more shapes given by vanity URL.

With more than one --persona the conversation is a group chat and every
message has to @mention who should answer.

Commands inside the chat:
  /save [title]  save the conversation
  /regen         regenerate the last reply
  /clear         clear the conversation
  salir          leave`,
	RunE: runChat,
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List saved chats",
	RunE:  runChats,
}

var openCmd = &cobra.Command{
	Use:   "open <chat-id>",
	Short: "Reopen a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "stable user id (defaults to $SHAPES_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "shapes API key (defaults to $SHAPES_API_KEY)")
	chatCmd.Flags().StringArrayVarP(&personas, "persona", "p", nil, "shape vanity URL, repeatable")
	chatCmd.Flags().StringVar(&title, "title", "", "title used by /save when none is given")
	_ = chatCmd.MarkFlagRequired("persona")

	rootCmd.AddCommand(chatCmd, chatsCmd, openCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, _ := zap.NewDevelopment()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("conectar a la base: %w", err)
	}

	key := apiKey
	if key == "" {
		key = cfg.ShapesAPIKey
	}
	settings := service.NewSettingsService(nil, cfg.ShapesAppID, key)
	persistence := service.NewChatPersistence(
		repository.NewPgChatRepository(pool),
		repository.NewPgMessageRepository(pool),
		logger,
	)
	orchestrator := service.NewOrchestrator(llm.NewOpenAIClient(cfg.ShapesBaseURL, logger), logger)

	return &app{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		settings:      settings,
		personas:      service.NewPersonaService(settings),
		conversations: service.NewConversationService(orchestrator, persistence, settings, logger, cfg.FanoutLimit),
		renderer:      service.NewRenderer(service.NewMediaClassifier(cfg.MediaHost), service.NewIconAssigner()),
	}, nil
}

func (a *app) close() {
	a.pool.Close()
	_ = a.logger.Sync()
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ids := make([]string, 0, len(personas))
	for _, raw := range personas {
		p, err := a.personas.Add(ctx, userID, "", raw)
		if err != nil {
			return fmt.Errorf("persona %q: %w", raw, err)
		}
		ids = append(ids, p.ID)
	}
	roster, err := a.personas.Resolve(ctx, userID, ids)
	if err != nil {
		return err
	}
	conv, err := a.conversations.Start(userID, roster)
	if err != nil {
		return err
	}
	return a.repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), conv)
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	conv, err := a.conversations.OpenSavedChat(ctx, userID, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range a.renderer.Render(conv.Store.Messages(), conv.Personas) {
		printView(out, v)
	}
	return a.repl(ctx, cmd.InOrStdin(), out, conv)
}

func runChats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	chats, err := a.conversations.ListSavedChats(ctx, userID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(chats) == 0 {
		fmt.Fprintln(out, "No hay chats guardados.")
		return nil
	}
	for _, c := range chats {
		fmt.Fprintf(out, "%s  %-20s  %s  (%s)\n", c.ID, c.ChatbotName, c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) repl(ctx context.Context, in io.Reader, out io.Writer, conv *service.Conversation) error {
	autosaveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	autosaver := service.NewAutosaver(a.conversations, a.cfg.AutosaveInterval, a.logger)
	go autosaver.Run(autosaveCtx)

	names := make([]string, 0, len(conv.Personas))
	for _, p := range conv.Personas {
		names = append(names, service.PersonaHandle(p))
	}
	fmt.Fprintf(out, "---- Chat con %s (escribe 'salir' para terminar) ----\n", strings.Join(names, ", "))

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Tu > ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("leer input: %w", err)
		}
		text := strings.TrimSpace(line)
		switch {
		case text == "":
			continue
		case strings.EqualFold(text, "salir"), strings.EqualFold(text, "exit"):
			if conv.Dirty() && conv.Store.Len() > 0 {
				autosaver.SaveAll(ctx)
			}
			fmt.Fprintln(out, "Saliendo del chat...")
			return nil
		case strings.HasPrefix(text, "/save"):
			chatTitle := strings.TrimSpace(strings.TrimPrefix(text, "/save"))
			if chatTitle == "" {
				chatTitle = title
			}
			chat, err := a.conversations.Save(ctx, userID, conv.ID, chatTitle, true)
			if err != nil {
				fmt.Fprintf(out, "error guardando: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Guardado como %q (%s)\n", chat.Title, chat.ID)
		case text == "/regen":
			last, ok := lastBotMessage(conv.Store.Messages())
			if !ok {
				fmt.Fprintln(out, "No hay respuesta para regenerar.")
				continue
			}
			msg, err := a.conversations.Regenerate(ctx, userID, conv.ID, last.ID)
			if err != nil {
				fmt.Fprintf(out, "error regenerando: %v\n", err)
				continue
			}
			printView(out, a.renderer.View(msg, conv.Personas))
		case text == "/clear":
			_ = a.conversations.Clear(userID, conv.ID)
			fmt.Fprintln(out, "Conversación vacía.")
		default:
			res, err := a.conversations.Send(ctx, userID, conv.ID, service.Input{Text: text})
			if err != nil {
				var mentionErr *service.MentionRequiredError
				if errors.As(err, &mentionErr) {
					fmt.Fprintln(out, mentionErr.Guidance())
					continue
				}
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			for _, v := range a.renderer.Render(res.Replies, conv.Personas) {
				printView(out, v)
			}
		}
	}
}

func lastBotMessage(messages []domain.Message) (domain.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == domain.SenderBot {
			return messages[i], true
		}
	}
	return domain.Message{}, false
}

// printView muestra los pensamientos entre paréntesis y los adjuntos en una línea aparte.
func printView(out io.Writer, v service.MessageView) {
	speaker := "Tu"
	if v.Sender == domain.SenderBot {
		speaker = v.BotName
	}
	parts := make([]string, 0, len(v.Segments))
	for _, seg := range v.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if seg.IsInnerThought {
			text = "(" + text + ")"
		}
		parts = append(parts, text)
	}
	fmt.Fprintf(out, "%s > %s\n", speaker, strings.Join(parts, " "))
	if v.Media != nil {
		fmt.Fprintf(out, "    [%s] %s\n", v.Media.Kind, v.Media.URL)
	}
}
