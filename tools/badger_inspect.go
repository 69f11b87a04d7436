package main

import (
	"chat-relay/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// badger_inspect dumps membership and presence records of a stopped relay.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan (ws:, ch:, presence:)")
	flag.Parse()

	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "User", "Target", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				var record structpb.Struct
				if err := proto.Unmarshal(v, &record); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}
				table.Append(describe(key, record.GetFields()))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	table.Render()
}

func describe(key string, fields map[string]*structpb.Value) []string {
	if userID, found := strings.CutPrefix(key, "presence:"); found {
		lastSeen := time.UnixMilli(int64(fields["lastSeen"].GetNumberValue())).UTC()
		return []string{key, "PRESENCE", userID, "", fmt.Sprintf("%s since %s",
			fields["status"].GetStringValue(), lastSeen.Format(time.RFC3339))}
	}
	kind, userID, targetID, ok := repositories.ParseMembershipKey([]byte(key))
	switch {
	case ok && kind == "ws":
		return []string{key, "WORKSPACE", string(userID), targetID, fields["role"].GetStringValue()}
	case ok:
		return []string{key, "CHANNEL", string(userID), targetID, fields["joinedAt"].GetStringValue()}
	default:
		return []string{key, "UNKNOWN", "", "", ""}
	}
}
