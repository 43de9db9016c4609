/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tieubaoca/docqa/types"
	"github.com/tieubaoca/docqa/utils"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with PDF documents in the terminal",
	Long: `Ingests the given PDF files and answers questions about them.

With --question a single answer is printed; otherwise questions are read
from standard input, one per line, until EOF or "exit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")
		directory, _ := cmd.Flags().GetString("directory")
		question, _ := cmd.Flags().GetString("question")

		if directory != "" {
			found, err := utils.ListPDFFiles(directory)
			if err != nil {
				return err
			}
			files = append(files, found...)
		}
		files = append(files, args...)
		if len(files) == 0 {
			return &types.EmptyInputError{Reason: types.EmptyNoDocuments}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfgFile)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		docs, err := a.files.ReadFiles(files)
		if err != nil {
			return err
		}
		session := a.sessions.Create()
		result, err := a.sessions.Ingest(ctx, session.ID, docs)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d document(s) into %d chunks.\n", result.Documents, result.Chunks)
		for _, f := range result.Failures {
			fmt.Fprintf(out, "Skipped %s: %v\n", f.Document, f.Err)
		}

		if question != "" {
			return ask(ctx, a, session.ID, question, out)
		}
		return chatLoop(ctx, a, session.ID, cmd.InOrStdin(), out)
	},
}

func ask(ctx context.Context, a *app, sessionID, question string, out io.Writer) error {
	answer, err := a.sessions.Ask(ctx, sessionID, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, answer)
	return nil
}

func chatLoop(ctx context.Context, a *app, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := ask(ctx, a, sessionID, question, out); err != nil {
			if !types.IsRetriable(err) {
				return err
			}
			fmt.Fprintf(out, "error: %s\n", types.UserMessage(err))
		}
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringArrayP("file", "f", nil, "PDF file to ingest (repeatable)")
	chatCmd.Flags().StringP("directory", "d", "", "directory to scan for PDF files")
	chatCmd.Flags().StringP("question", "q", "", "ask a single question and exit")
}
