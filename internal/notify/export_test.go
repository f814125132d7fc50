package notify

// ClaimBatchSize exposes claimBatchSize to the external test package.
const ClaimBatchSize = claimBatchSize
