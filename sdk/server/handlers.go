// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
)

func (s *Server) listAssets(c *gin.Context) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	body, status, err := s.deps.Assets.List(c.Request.Context(), assets.ListRequest{
		Path:   c.Param("path"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		abortWithError(c, "Failed to list assets", err)
		return
	}
	c.Data(status, gin.MIMEJSON, body)
}

func (s *Server) downloadAsset(c *gin.Context) {
	assetPath := strings.Trim(c.Param("path"), "/")
	if assetPath == "" {
		badRequest(c, "missing asset path")
		return
	}

	resp, err := s.deps.Assets.OpenDownload(c.Request.Context(), assetPath)
	if err != nil {
		abortWithError(c, "Failed to download asset, make sure the path is an asset and not a folder", err)
		return
	}
	defer resp.Body.Close()

	name := c.Query("newFileName")
	if name == "" {
		name = path.Base(assetPath)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, resp.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
	})
}

func (s *Server) getMetadata(c *gin.Context) {
	body, status, err := s.deps.Assets.GetMetadata(c.Request.Context(), c.Param("path"))
	if err != nil {
		abortWithError(c, "Failed to read metadata", err)
		return
	}
	c.Data(status, gin.MIMEJSON, body)
}

func (s *Server) updateMetadata(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	if len(payload) == 0 {
		badRequest(c, "missing metadata body")
		return
	}

	merge, _ := strconv.ParseBool(c.Query("merge"))
	body, err := s.deps.Assets.UpdateMetadata(c.Request.Context(), assets.UpdateMetadataRequest{
		Path:  c.Param("path"),
		Body:  payload,
		Merge: merge,
	})
	if err != nil {
		abortWithError(c, "Failed to update metadata", err)
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON, body)
}

func (s *Server) copyAsset(c *gin.Context) {
	var req assets.CopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid copy request: "+err.Error())
		return
	}
	if req.SourcePath == "" || req.TargetPath == "" {
		badRequest(c, "sourcePath and targetPath are required")
		return
	}

	body, err := s.deps.Assets.Copy(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "Failed to copy asset", err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Asset copied", Data: rawOrNil(body)})
}

func (s *Server) deleteAsset(c *gin.Context) {
	if err := s.deps.Assets.Delete(c.Request.Context(), c.Param("path")); err != nil {
		abortWithError(c, "Failed to delete asset", err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Asset deleted"})
}

func (s *Server) deleteDiscarded(c *gin.Context) {
	if err := s.deps.Assets.DeleteDiscarded(c.Request.Context(), c.Param("path")); err != nil {
		abortWithError(c, "Failed to delete discarded renditions", err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Discarded renditions deleted"})
}

type folderRequest struct {
	Name string `json:"name"`
	// Nombre is accepted for older clients.
	Nombre    string `json:"nombre"`
	Title     string `json:"title"`
	Direction string `json:"direction"`
}

func (s *Server) createFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid folder request: "+err.Error())
		return
	}
	if req.Name == "" {
		req.Name = req.Nombre
	}
	if req.Name == "" || req.Title == "" || req.Direction == "" {
		badRequest(c, "name, title and direction are required")
		return
	}

	if err := s.deps.Assets.CreateFolder(c.Request.Context(), req.Name, req.Title, req.Direction); err != nil {
		abortWithError(c, "Failed to create folder", err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Folder created"})
}

func (s *Server) getToken(c *gin.Context) {
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		s.deps.Tokens.Invalidate()
	}
	cred, err := s.deps.Tokens.Credential(c.Request.Context())
	if err != nil {
		abortWithError(c, "Failed to obtain access token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": cred.AccessToken, "expiresAt": cred.ExpiresAt})
}

func (s *Server) searchMetadata(c *gin.Context) {
	property, value := c.Query("property"), c.Query("value")
	if property == "" || value == "" {
		badRequest(c, "property and value are required")
		return
	}

	body, status, err := s.deps.Assets.Search(c.Request.Context(), assets.SearchRequest{
		Property: property,
		Value:    value,
		Root:     c.Query("path"),
	})
	if err != nil {
		abortWithError(c, "Search failed", err)
		return
	}
	c.Data(status, gin.MIMEJSON, body)
}
