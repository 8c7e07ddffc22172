package mobi

import "strings"

// subjectSeparator joins multiple subjects into the single subject record
// kept by the first-wins duplicate policy.
const subjectSeparator = "; "

// Metadata holds the bibliographic fields of a book, decoded to UTF-8.
type Metadata struct {
	Title       string
	Author      string
	Publisher   string
	Description string
	ISBN        string
	Subjects    []string
	PublishDate string
	Contributor string
	Rights      string
	Source      string
	ASIN        string
	Language    string
}

// textField binds a keyed metadata id to a Metadata string field.
type textField struct {
	id  uint32
	ptr func(*Metadata) *string
}

var textFields = []textField{
	{EXTHAuthor, func(m *Metadata) *string { return &m.Author }},
	{EXTHPublisher, func(m *Metadata) *string { return &m.Publisher }},
	{EXTHDescription, func(m *Metadata) *string { return &m.Description }},
	{EXTHISBN, func(m *Metadata) *string { return &m.ISBN }},
	{EXTHPublishDate, func(m *Metadata) *string { return &m.PublishDate }},
	{EXTHContributor, func(m *Metadata) *string { return &m.Contributor }},
	{EXTHRights, func(m *Metadata) *string { return &m.Rights }},
	{EXTHSource, func(m *Metadata) *string { return &m.Source }},
	{EXTHASIN, func(m *Metadata) *string { return &m.ASIN }},
	{EXTHLanguage, func(m *Metadata) *string { return &m.Language }},
}

// metadataFromEXTH decodes the well-known text records of e. Records that
// fail to decode are left empty.
func metadataFromEXTH(e *EXTH, enc uint32) Metadata {
	var md Metadata
	for _, tf := range textFields {
		v, ok := e.Get(tf.id)
		if !ok {
			continue
		}
		if s, err := decodeText(enc, v); err == nil {
			*tf.ptr(&md) = strings.TrimSpace(s)
		}
	}
	if v, ok := e.Get(EXTHSubject); ok {
		if s, err := decodeText(enc, v); err == nil {
			md.Subjects = splitSubjects(s)
		}
	}
	return md
}

// applyMetadata writes md into e. Empty fields delete their record.
func applyMetadata(e *EXTH, md Metadata, enc uint32) {
	for _, tf := range textFields {
		v := strings.TrimSpace(*tf.ptr(&md))
		if v == "" {
			e.Delete(tf.id)
			continue
		}
		e.Set(tf.id, encodeText(enc, v))
	}
	if len(md.Subjects) == 0 {
		e.Delete(EXTHSubject)
	} else {
		e.Set(EXTHSubject, encodeText(enc, strings.Join(md.Subjects, subjectSeparator)))
	}
	if md.Title != "" {
		e.Set(EXTHUpdatedTitle, encodeText(enc, md.Title))
	}
}

func splitSubjects(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func copyMetadata(in Metadata) Metadata {
	out := in
	out.Subjects = append([]string(nil), in.Subjects...)
	return out
}
