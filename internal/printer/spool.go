package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmeshcher/playhouse/internal/billing"
)

// Spool сохраняет чеки в каталог и при необходимости отправляет файл команде печати ОС.
type Spool struct {
	dir      string
	command  []string
	renderer Renderer
	now      func() time.Time
}

// NewSpool создаёт принтер, пишущий чеки в dir. command задаёт команду печати вида "lp -d XP-80",
// путь к файлу чека добавляется последним аргументом. Пустая команда отключает отправку на печать.
func NewSpool(dir, command string, renderer Renderer) *Spool {
	return &Spool{
		dir:      dir,
		command:  strings.Fields(command),
		renderer: renderer,
		now:      time.Now,
	}
}

// Print сохраняет чек и отправляет его на печать.
func (s *Spool) Print(ctx context.Context, r billing.Receipt) error {
	path, err := s.Write(r)
	if err != nil {
		return err
	}

	if len(s.command) == 0 {
		return nil
	}

	args := append(append([]string{}, s.command[1:]...), path)
	out, err := exec.CommandContext(ctx, s.command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run print command: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Write сохраняет текст чека в каталог и возвращает путь к файлу.
func (s *Spool) Write(r billing.Receipt) (string, error) {
	text, err := s.renderer.Render(r)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}

	id := r.SessionID
	if id == "" {
		id = "unknown"
	}
	name := fmt.Sprintf("receipt_%s_%d.txt", id, s.now().UnixMilli())
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}
