package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Long-term memory and the private diary stay as human-readable markdown
// under the data dir. They are append-mostly and meant to be browsable.

func (s *Store) memoryPath() string {
	return filepath.Join(s.dataDir, "MEMORY.md")
}

func (s *Store) thoughtsPath() string {
	return filepath.Join(s.dataDir, "THOUGHTS.md")
}

// LongTermMemory returns the full long-term memory text, or empty string.
func (s *Store) LongTermMemory() string {
	data, err := os.ReadFile(s.memoryPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// AppendToMemory adds a fact under a section heading in MEMORY.md, creating
// the file or section as needed.
func (s *Store) AppendToMemory(section, fact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := ""
	if data, err := os.ReadFile(s.memoryPath()); err == nil {
		content = string(data)
	}
	if content == "" {
		content = "# Long-Term Memory\n"
	}

	heading := "## " + section
	if idx := strings.Index(content, heading+"\n"); idx >= 0 {
		// Insert at the end of the section, before the next heading.
		rest := content[idx+len(heading)+1:]
		end := strings.Index(rest, "\n## ")
		if end < 0 {
			end = len(rest)
		}
		body := strings.TrimRight(rest[:end], "\n")
		if strings.EqualFold(strings.TrimSpace(body), "none yet") || strings.EqualFold(strings.TrimSpace(body), "none") {
			body = "- " + fact
		} else {
			body = body + "\n- " + fact
		}
		content = content[:idx+len(heading)+1] + body + "\n" + rest[end:]
	} else {
		content = strings.TrimRight(content, "\n") + fmt.Sprintf("\n\n%s\n- %s\n", heading, fact)
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.memoryPath(), []byte(content), 0644)
}

// AppendThought adds a dated entry to the private diary.
func (s *Store) AppendThought(date, thought string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := ""
	if data, err := os.ReadFile(s.thoughtsPath()); err == nil {
		content = string(data)
	}
	entry := fmt.Sprintf("\n## %s\n%s\n", date, thought)
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(s.thoughtsPath(), []byte(content+entry), 0644)
}

// ForgetTopic removes every fact, open loop, and long-term memory line that
// mentions topic, case-insensitively.
func (s *Store) ForgetTopic(topic string) {
	lower := strings.ToLower(topic)

	s.UpdateProfile(func(p *UserProfile) {
		facts := p.KnownFacts[:0]
		for _, f := range p.KnownFacts {
			if !strings.Contains(strings.ToLower(f.Text), lower) {
				facts = append(facts, f)
			}
		}
		p.KnownFacts = facts

		loops := p.OpenLoops[:0]
		for _, l := range p.OpenLoops {
			if !strings.Contains(strings.ToLower(l), lower) {
				loops = append(loops, l)
			}
		}
		p.OpenLoops = loops
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.memoryPath())
	if err != nil {
		return
	}
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") && strings.Contains(strings.ToLower(trimmed), lower) {
			continue
		}
		kept = append(kept, line)
	}
	_ = os.WriteFile(s.memoryPath(), []byte(strings.Join(kept, "\n")), 0644)
}
