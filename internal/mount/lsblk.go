package mount

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// BlockDevice is one row of `lsblk -P -o NAME,MOUNTPOINT`.
type BlockDevice struct {
	Name       string
	MountPoint string
}

// ParseLsblk parses lsblk pairs output (KEY="value" per column, one device per
// line). Values are unescaped from lsblk's \xHH form so mount points with
// spaces survive.
func ParseLsblk(data []byte) []BlockDevice {
	var devices []BlockDevice
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := parsePairs(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		devices = append(devices, BlockDevice{
			Name:       fields["NAME"],
			MountPoint: fields["MOUNTPOINT"],
		})
	}
	return devices
}

func parsePairs(line string) map[string]string {
	fields := make(map[string]string)
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || eq+1 >= len(rest) || rest[eq+1] != '"' {
			return fields
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+2:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return fields
		}
		fields[key] = unescape(rest[:end])
		rest = strings.TrimSpace(rest[end+1:])
	}
	return fields
}

func unescape(value string) string {
	if !strings.Contains(value, `\x`) {
		return value
	}
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+3 < len(value) && value[i+1] == 'x' {
			if n, err := strconv.ParseUint(value[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
