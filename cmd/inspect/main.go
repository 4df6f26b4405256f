// Command inspect prints the content of a campus-chat badger store.
package main

import (
	"campus-chat/domain"
	"campus-chat/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", "./data/campus-chat", "Path to badger DB")
	what := flag.String("show", "all", "conversations, messages, stories or all")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	kv := repositories.NewBadgerKV(db, slog.Default())
	defer kv.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	show := func(section string) bool { return *what == "all" || *what == section }

	if show("conversations") {
		conversations, err := repositories.NewConversationRepository(kv).LoadConversations(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printConversations(conversations)
	}
	if show("messages") {
		messages, err := repositories.NewMessageRepository(kv).LoadMessages(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printMessages(messages)
	}
	if show("stories") {
		stories, err := repositories.NewStoryRepository(kv).LoadStories(ctx)
		if err != nil {
			log.Fatal(err)
		}
		printStories(stories, now)
	}
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func title(text string, count int) {
	fmt.Println()
	color.New(color.BgBlack, color.FgGreen).Printf(" %s (%d) ", text, count)
	fmt.Println()
}

func joinUsers(s domain.UserSet) string {
	return strings.Join(lo.Map(s.Sorted(), func(u domain.UserID, _ int) string { return string(u) }), ",")
}

func printConversations(conversations []domain.Conversation) {
	title("Conversations", len(conversations))
	table := newTable("ID", "Kind", "Name", "Participants", "Created by", "Last activity")
	for _, c := range conversations {
		table.Append([]string{
			string(c.ID), string(c.Kind), c.Name, joinUsers(c.Participants),
			string(c.CreatedBy), c.LastActivityAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

func printMessages(byConversation map[domain.ConversationID][]domain.Message) {
	ids := lo.Keys(byConversation)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	total := lo.SumBy(ids, func(id domain.ConversationID) int { return len(byConversation[id]) })

	title("Messages", total)
	table := newTable("Conversation", "Seq", "Sender", "Created at", "Read by", "Content")
	for _, id := range ids {
		for _, m := range byConversation[id] {
			table.Append([]string{
				string(id), fmt.Sprint(m.Sequence), string(m.SenderID),
				m.CreatedAt.Format(time.RFC3339), joinUsers(m.ReadBy), truncate(m.Content, 48),
			})
		}
	}
	table.Render()
}

func printStories(stories []domain.Story, now time.Time) {
	title("Stories", len(stories))
	table := newTable("ID", "Author", "Kind", "Status", "Expires at", "Viewers")
	for _, s := range stories {
		status := string(s.StatusAt(now))
		switch s.StatusAt(now) {
		case domain.StoryActive:
			status = color.Green.Sprint(status)
		case domain.StoryDeleted:
			status = color.Red.Sprint(status)
		default:
			status = color.Yellow.Sprint(status)
		}
		table.Append([]string{
			string(s.ID), string(s.AuthorID), string(s.Kind), status,
			s.ExpiresAt.Format(time.RFC3339), fmt.Sprint(len(s.ViewerIDs)),
		})
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
