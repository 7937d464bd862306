package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/ashureev/notechat/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	importID    string
	importUser  string
	importTitle string
)

var importNoteCmd = &cobra.Command{
	Use:   "import-note <file|->",
	Short: "Store a transcript as a note in the SQLite note store",
	Long: `Store a transcript file (or stdin with "-") as a note in the SQLite note
store at DB_PATH. Re-importing a note id replaces its title and transcript but
keeps an already provisioned assistant.

Examples:
  notechat import-note meeting.txt --id standup-0412 --user dev
  cat call.txt | notechat import-note - --id call-7 --user dev --title "Sales call"`,
	Args: cobra.ExactArgs(1),
	RunE: runImportNote,
}

func init() {
	importNoteCmd.Flags().StringVar(&importID, "id", "", "note id (defaults to the file name)")
	importNoteCmd.Flags().StringVarP(&importUser, "user", "u", "", "owner user id")
	importNoteCmd.Flags().StringVarP(&importTitle, "title", "t", "", "note title")
	_ = importNoteCmd.MarkFlagRequired("user")
}

func runImportNote(cmd *cobra.Command, args []string) error {
	transcript, err := readTranscript(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	note := &domain.Note{
		ID:         importID,
		UserID:     importUser,
		Title:      importTitle,
		Transcript: transcript,
	}
	if note.ID == "" {
		if args[0] == "-" {
			return fmt.Errorf("--id is required when reading from stdin")
		}
		note.ID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if note.Title == "" {
		note.Title = note.ID
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open note store: %w", err)
	}
	defer func() { _ = repo.Close() }()

	if err := repo.UpsertNote(context.Background(), note); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	_, err = green.Fprintf(cmd.OutOrStdout(), "Imported note %s (%d characters) into %s\n",
		note.ID, len([]rune(transcript)), cfg.DBPath)
	return err
}

func readTranscript(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", fmt.Errorf("transcript is empty")
	}
	return string(data), nil
}
