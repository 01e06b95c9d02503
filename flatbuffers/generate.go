package flatbuffers

//go:generate flatc --go -o . message.fbs progression.fbs
