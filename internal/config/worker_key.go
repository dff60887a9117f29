package config

type WorkerKeyStruct struct {
	PersistAnswersQueue     string
	PersistCheckpointsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:     "persist_answers_queue",
	PersistCheckpointsQueue: "persist_checkpoints_queue",
}
