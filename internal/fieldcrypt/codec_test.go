package fieldcrypt

import (
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CodecSuite struct {
	suite.Suite
	codec *Codec
}

func (s *CodecSuite) SetupTest() {
	s.codec = New("test-secret", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) TestRoundTrip() {
	for _, plain := range []string{
		"Kim Minjun",
		"010-1234-5678",
		"名前",            // multibyte
		"é ü ß 한글 🙂",    // mixed UTF-8
		strings.Repeat("x", 4096),
	} {
		enc, err := s.codec.Encrypt(plain)
		s.Require().NoError(err)
		s.True(strings.HasPrefix(enc, "enc::"))
		s.NotContains(enc, plain)

		res := s.codec.DecryptTagged(enc)
		s.Equal(StateDecrypted, res.State)
		s.Equal(plain, res.Text)
		s.Equal(plain, s.codec.Decrypt(enc))
	}
}

func (s *CodecSuite) TestEmptyPassesThrough() {
	enc, err := s.codec.Encrypt("")
	s.Require().NoError(err)
	s.Equal("", enc)

	res := s.codec.DecryptTagged("")
	s.Equal(StatePlain, res.State)
	s.Equal("", res.Text)
}

func (s *CodecSuite) TestLegacyPlaintextUnchanged() {
	for _, legacy := range []string{"Jane Doe", "010-9999-0000", "encoded-but-not-tagged"} {
		res := s.codec.DecryptTagged(legacy)
		s.Equal(StatePlain, res.State)
		s.Equal(legacy, res.Text)
		s.Equal(legacy, s.codec.Decrypt(legacy))
	}
}

func (s *CodecSuite) TestCorruptCiphertextFailsOpen() {
	enc, err := s.codec.Encrypt("sensitive")
	s.Require().NoError(err)

	// Flip a byte inside the payload so GCM authentication fails.
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(enc, "enc::"))
	s.Require().NoError(err)
	raw[len(raw)-1] ^= 0xff
	corrupt := "enc::" + base64.StdEncoding.EncodeToString(raw)

	res := s.codec.DecryptTagged(corrupt)
	s.Equal(StateCorrupt, res.State)
	s.Equal(corrupt, res.Text, "corrupt input is returned unchanged")
	s.Equal(corrupt, s.codec.Decrypt(corrupt))
}

func (s *CodecSuite) TestMalformedCiphertextFailsOpen() {
	for _, bad := range []string{
		"enc::not-base64!!!",
		"enc::" + base64.StdEncoding.EncodeToString([]byte("short")),
		"enc::",
	} {
		res := s.codec.DecryptTagged(bad)
		s.Equal(StateCorrupt, res.State)
		s.Equal(bad, res.Text)
	}
}

func (s *CodecSuite) TestWrongKeyFailsOpen() {
	other := New("another-secret", WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	enc, err := other.Encrypt("pii")
	s.Require().NoError(err)

	res := s.codec.DecryptTagged(enc)
	s.Equal(StateCorrupt, res.State)
	s.Equal(enc, res.Text)
}

func (s *CodecSuite) TestExactLengthSecretUsedVerbatim() {
	secret := strings.Repeat("k", 32)
	a := New(secret, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	b := New(secret, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	enc, err := a.Encrypt("round trip across instances")
	s.Require().NoError(err)
	s.Equal("round trip across instances", b.Decrypt(enc))
}
