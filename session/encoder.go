package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

const (
	flagTwoFARequired  = 1 << 0
	flagTwoFASatisfied = 1 << 1
)

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	var flags byte
	if s.TwoFARequired {
		flags |= flagTwoFARequired
	}
	if s.TwoFASatisfied {
		flags |= flagTwoFASatisfied
	}
	buf.WriteByte(flags)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	if len(s.Permissions) > 65535 {
		return nil, errors.New("permission set too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Permissions))); err != nil {
		return nil, err
	}
	for name, granted := range s.Permissions {
		if len(name) > 255 {
			return nil, errors.New("permission name too long")
		}
		buf.WriteByte(byte(len(name)))
		buf.WriteString(name)
		if granted {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &Session{
		TwoFARequired:  flags&flagTwoFARequired != 0,
		TwoFASatisfied: flags&flagTwoFASatisfied != 0,
	}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	s.UserID = string(userID)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	var permCount uint16
	if err := binary.Read(reader, binary.BigEndian, &permCount); err != nil {
		return nil, err
	}
	if permCount > 0 {
		s.Permissions = make(map[string]bool, permCount)
		for i := uint16(0); i < permCount; i++ {
			nameLen, err := reader.ReadByte()
			if err != nil {
				return nil, err
			}
			name := make([]byte, nameLen)
			if _, err := io.ReadFull(reader, name); err != nil {
				return nil, err
			}
			granted, err := reader.ReadByte()
			if err != nil {
				return nil, err
			}
			s.Permissions[string(name)] = granted == 1
		}
	}

	return s, nil
}
