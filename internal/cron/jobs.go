package cron

import "time"

const defaultBatchSize = 200

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
