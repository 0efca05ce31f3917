package trackid

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const prefix = "GAE"

// Алфавит суффикса без визуально похожих символов (0/O, 1/I).
const suffixAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const suffixLen = 4

// Generate возвращает трек-номер вида GAE<base36 unix ms><4 случайных символа>.
// Часть с таймстемпом монотонна, поэтому номера сортируются по времени создания.
// Уникальность здесь не гарантируется — её проверяет сервис при записи.
func Generate() string {
	return generateAt(time.Now().UTC())
}

func generateAt(t time.Time) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36)))

	buf := make([]byte, suffixLen)
	_, _ = rand.Read(buf)
	for _, c := range buf {
		b.WriteByte(suffixAlphabet[int(c)%len(suffixAlphabet)])
	}
	return b.String()
}
