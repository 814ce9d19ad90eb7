package store

import (
	"fmt"

	"github.com/tandemapp/tandem/internal/common"
)

// Table is a closed enumeration of the synced tables. All SQL is generated
// from the registry below, so a table or column name never comes from caller
// input. TableByName re-validates string input as belt and suspenders.
type Table int

const (
	TableJournalEntries Table = iota
	TablePromptAnswers
	TableMemories
	TableRituals
	TableCheckins
	TableVibes
	TableAttachments
)

// Tables lists every synced table, in purge/wipe iteration order.
var Tables = []Table{
	TableJournalEntries,
	TablePromptAnswers,
	TableMemories,
	TableRituals,
	TableCheckins,
	TableVibes,
	TableAttachments,
}

// column describes one content column of a table. Cipher columns hold opaque
// ciphertext and are never filterable; plaintext metadata columns are small
// values kept unencrypted so the device can sort/filter without decrypting.
type column struct {
	name   string
	cipher bool
}

type tableSpec struct {
	name     string
	idPrefix string
	columns  []column
}

var tableSpecs = map[Table]tableSpec{
	TableJournalEntries: {
		name:     "journal_entries",
		idPrefix: "je",
		columns: []column{
			{name: "content_cipher", cipher: true},
			{name: "mood"},
			{name: "entry_date"},
		},
	},
	TablePromptAnswers: {
		name:     "prompt_answers",
		idPrefix: "pa",
		columns: []column{
			{name: "prompt_id"},
			{name: "answer_cipher", cipher: true},
			{name: "answer_date"},
		},
	},
	TableMemories: {
		name:     "memories",
		idPrefix: "mem",
		columns: []column{
			{name: "title_cipher", cipher: true},
			{name: "body_cipher", cipher: true},
			{name: "memory_date"},
		},
	},
	TableRituals: {
		name:     "rituals",
		idPrefix: "rit",
		columns: []column{
			{name: "title_cipher", cipher: true},
			{name: "cadence"},
			{name: "last_done_on"},
		},
	},
	TableCheckins: {
		name:     "checkins",
		idPrefix: "chk",
		columns: []column{
			{name: "note_cipher", cipher: true},
			{name: "checkin_date"},
			{name: "mood"},
		},
	},
	TableVibes: {
		name:     "vibes",
		idPrefix: "vb",
		columns: []column{
			{name: "vibe"},
			{name: "note_cipher", cipher: true},
			{name: "vibe_date"},
		},
	},
	TableAttachments: {
		name:     "attachments",
		idPrefix: "att",
		columns: []column{
			{name: "record_id"},
			{name: "caption_cipher", cipher: true},
			{name: "mime_type"},
		},
	},
}

// Name returns the SQL table name.
func (t Table) Name() string {
	return t.spec().name
}

func (t Table) String() string {
	return t.Name()
}

// ContentColumns returns the caller-writable column names of t, in schema
// order. The sync bookkeeping columns are not included and are never
// writable directly.
func (t Table) ContentColumns() []string {
	spec := t.spec()
	names := make([]string, len(spec.columns))
	for i, c := range spec.columns {
		names[i] = c.name
	}
	return names
}

func (t Table) spec() tableSpec {
	spec, ok := tableSpecs[t]
	if !ok {
		panic(fmt.Sprintf("store: invalid table %d", int(t)))
	}
	return spec
}

// Valid reports whether t is one of the known tables.
func (t Table) Valid() bool {
	_, ok := tableSpecs[t]
	return ok
}

// hasContentColumn reports whether name is a content column of t.
func (t Table) hasContentColumn(name string) bool {
	for _, c := range t.spec().columns {
		if c.name == name {
			return true
		}
	}
	return false
}

// filterable reports whether name may appear as an equality filter in List.
// Identity columns and plaintext metadata qualify; cipher columns do not
// (equality on ciphertext is meaningless and would leak intent).
func (t Table) filterable(name string) bool {
	switch name {
	case "id", "owner_id", "couple_id":
		return true
	}
	for _, c := range t.spec().columns {
		if c.name == name {
			return !c.cipher
		}
	}
	return false
}

// TableByName maps a table name string back to its enum value. Unknown names
// return common.ErrUnknownTable; this is the runtime guard behind the
// compile-time enum.
func TableByName(name string) (Table, error) {
	for t, spec := range tableSpecs {
		if spec.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", common.ErrUnknownTable, name)
}
